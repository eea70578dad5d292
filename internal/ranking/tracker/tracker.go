// Package tracker runs one ingestion end to end: it validates the request,
// interns the keyword set and run, walks the result source into the ledger,
// and announces the finished run.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/ledger"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/validator"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/walker"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/snapshot"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/tracing"
)

// Store is everything the tracker needs from the ranking store.
type Store interface {
	ledger.Store
	ResolveKeywordSet(ctx context.Context, keywords []string) (*ranking.KeywordSet, error)
	ResolveRun(ctx context.Context, keywordSetID int64, key string, ranAt time.Time) (*ranking.Run, bool, error)
	MaxRank(ctx context.Context, runID int64) (int, error)
	Reset(ctx context.Context) error
}

// RunPublisher announces finished runs; *events.Publisher satisfies it.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, ev ranking.RunCompletedEvent) error
}

// SourceFactory builds the ResultSource for a request.
type SourceFactory func(kind string, maxRank int) (ranking.ResultSource, error)

type Config struct {
	Sources        config.SourceConfig
	PolitenessWait time.Duration
	ArchiveHTML    bool
	ArchiveDir     string
	// SnapshotDir is where snapshot-first runs write their JSON snapshot.
	SnapshotDir string
	Metrics     *metrics.Metrics
	// Publisher may be nil.
	Publisher RunPublisher
	// NewSource defaults to source.New over Sources.
	NewSource SourceFactory
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result reports what an ingestion did. FinalRank is meaningful even when
// Track also returns an error: it is the rank reached before the failure.
type Result struct {
	Dropped      bool                `json:"dropped"`
	KeywordSet   *ranking.KeywordSet `json:"keyword_set,omitempty"`
	Run          *ranking.Run        `json:"run,omitempty"`
	FinalRank    int                 `json:"final_rank"`
	Reused       bool                `json:"reused"`
	SnapshotPath string              `json:"snapshot_path,omitempty"`
}

type Tracker struct {
	store  Store
	cfg    Config
	logger *slog.Logger
}

func New(st Store, cfg Config) *Tracker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewSource == nil {
		sources := cfg.Sources
		cfg.NewSource = func(kind string, maxRank int) (ranking.ResultSource, error) {
			return source.New(kind, sources, maxRank)
		}
	}
	return &Tracker{
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "tracker"),
	}
}

// Track performs one ingestion. On a fetch failure the ranks recorded so
// far are kept, the Result carries the rank reached, and the error wraps
// ErrFetchFailure.
func (t *Tracker) Track(ctx context.Context, req *ranking.TrackRequest) (*Result, error) {
	if err := validator.ValidateTrackRequest(req, t.cfg.Sources); err != nil {
		return nil, err
	}

	res := &Result{}
	if req.Drop {
		if err := t.store.Reset(ctx); err != nil {
			return nil, err
		}
		res.Dropped = true
		t.logger.Warn("ranking history dropped")
	}
	if req.Empty() {
		return res, nil
	}

	ranAt := t.cfg.Now()
	var replay *source.Replay
	if req.ReplayPath != "" {
		snap, err := snapshot.Load(req.ReplayPath)
		if err != nil {
			return nil, err
		}
		if ranAt, err = snap.RanAt(); err != nil {
			return nil, err
		}
		if replay, err = source.ReplayFromResponses(snap.Responses()); err != nil {
			return nil, err
		}
	}
	key := req.RunKey
	if key == "" {
		key = ranking.RunKey(ranAt)
	}

	ks, err := t.store.ResolveKeywordSet(ctx, req.Keywords)
	if err != nil {
		return nil, err
	}
	run, created, err := t.store.ResolveRun(ctx, ks.ID, key, ranAt)
	if err != nil {
		return nil, err
	}
	res.KeywordSet, res.Run = ks, run

	ctx = logger.WithRun(ctx, run.ID, ks.ID)
	log := logger.FromContext(ctx).With("component", "tracker")
	ctx, span := tracing.StartSpan(ctx, "run")
	span.SetAttr("keywords", ks.Normalized)
	defer func() {
		span.End()
		span.Log(log)
	}()

	if !created {
		res.Reused = true
		if res.FinalRank, err = t.store.MaxRank(ctx, run.ID); err != nil {
			return res, err
		}
		log.Info("run already recorded, skipping walk", "run_key", key, "final_rank", res.FinalRank)
		t.finish(ctx, req, res, "reused")
		return res, nil
	}

	log.Info("run started", "run_key", key, "max_rank", req.MaxRank, "source", sourceName(req))
	sink := ledger.New(t.store, *run, req.MaxRank, req.MyURL, t.cfg.Metrics)

	var walkErr error
	switch {
	case replay != nil:
		res.FinalRank, walkErr = walker.New(replay, walker.Config{
			SourceName: source.KindReplay,
			Metrics:    t.cfg.Metrics,
		}).Walk(ctx, req.Keywords, sink)
	case req.SnapshotFirst:
		res.FinalRank, res.SnapshotPath, walkErr = t.snapshotFirst(ctx, req, ranAt, sink)
	default:
		res.FinalRank, walkErr = t.walkLive(ctx, req, ranAt, sink)
	}

	status := "completed"
	if walkErr != nil {
		status = "partial"
		log.Error("run ended early", "final_rank", res.FinalRank, "error", walkErr)
	} else {
		log.Info("run completed", "final_rank", res.FinalRank)
	}
	span.SetAttr("final_rank", res.FinalRank)
	t.finish(ctx, req, res, status)
	return res, walkErr
}

func (t *Tracker) walkLive(ctx context.Context, req *ranking.TrackRequest, ranAt time.Time, sink *ledger.Ledger) (int, error) {
	src, err := t.cfg.NewSource(req.Source, req.MaxRank)
	if err != nil {
		return 0, err
	}
	wcfg := walker.Config{
		SourceName: req.Source,
		Delay:      t.cfg.PolitenessWait,
		Metrics:    t.cfg.Metrics,
	}
	if t.cfg.ArchiveHTML {
		wcfg.Observer = snapshot.NewArchive(t.cfg.ArchiveDir, req.Keywords, ranAt).Observe
	}
	return walker.New(src, wcfg).Walk(ctx, req.Keywords, sink)
}

// snapshotFirst fetches every page up front and writes the snapshot before
// the database sees anything, then ingests the fetched pages. Pages fetched
// before a failure are still snapshotted and ingested.
func (t *Tracker) snapshotFirst(ctx context.Context, req *ranking.TrackRequest, ranAt time.Time, sink *ledger.Ledger) (int, string, error) {
	log := logger.FromContext(ctx).With("component", "tracker")
	src, err := t.cfg.NewSource(req.Source, req.MaxRank)
	if err != nil {
		return 0, "", err
	}
	pages, fetchErr := walker.New(src, walker.Config{
		SourceName: req.Source,
		Delay:      t.cfg.PolitenessWait,
		Metrics:    t.cfg.Metrics,
	}).Prefetch(ctx, req.Keywords, req.MaxRank)

	var path string
	if len(pages) > 0 {
		if path, err = snapshot.Write(t.cfg.SnapshotDir, req.Keywords, ranAt, pages); err != nil {
			log.Error("writing snapshot failed", "error", err)
		} else {
			log.Info("snapshot written", "path", path, "pages", len(pages))
		}
	}

	rank, err := walker.New(source.NewReplay(pages), walker.Config{
		SourceName: source.KindReplay,
	}).Walk(ctx, req.Keywords, sink)
	if err != nil {
		return rank, path, err
	}
	return rank, path, fetchErr
}

func (t *Tracker) finish(ctx context.Context, req *ranking.TrackRequest, res *Result, status string) {
	if m := t.cfg.Metrics; m != nil {
		m.RunsTotal.WithLabelValues(status).Inc()
		if !res.Reused {
			m.RunFinalRank.Observe(float64(res.FinalRank))
		}
	}
	if t.cfg.Publisher == nil {
		return
	}
	ev := ranking.RunCompletedEvent{
		RunID:        res.Run.ID,
		RunKey:       res.Run.Key,
		KeywordSetID: res.KeywordSet.ID,
		Keywords:     req.Keywords,
		FinalRank:    res.FinalRank,
		Reused:       res.Reused,
		Partial:      status == "partial",
		RanAt:        res.Run.RanAt,
		CompletedAt:  t.cfg.Now(),
	}
	// Publishing is best effort; the run is already durable.
	if err := t.cfg.Publisher.PublishRunCompleted(ctx, ev); err != nil {
		logger.FromContext(ctx).Warn("run completed event not published", "error", err)
	}
}

func sourceName(req *ranking.TrackRequest) string {
	if req.ReplayPath != "" {
		return source.KindReplay
	}
	return req.Source
}
