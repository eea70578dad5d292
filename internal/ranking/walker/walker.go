// Package walker drives the paginated traversal of a ResultSource, carrying
// the rank counter across pages and deciding when to stop.
package walker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/tracing"
)

// Sink receives each page's entries together with the rank reached so far
// and returns the updated rank.
type Sink interface {
	IngestPage(ctx context.Context, entries []ranking.Entry, rankSoFar int) (int, error)
	MaxRank() int
}

// PageObserver is called with every fetched page before it is dispatched.
type PageObserver func(ctx context.Context, page *ranking.Page, rankSoFar int)

// Config controls a Walker.
type Config struct {
	// SourceName labels metrics and logs ("html", "api", "replay").
	SourceName string
	// Delay is the politeness wait between successive page fetches.
	Delay    time.Duration
	Observer PageObserver
	Metrics  *metrics.Metrics
}

// Walker pulls pages from a ResultSource until the sink reaches its maximum
// rank, the source runs out of pages, or a page yields nothing usable.
type Walker struct {
	source ranking.ResultSource
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

func New(source ranking.ResultSource, cfg Config) *Walker {
	if cfg.SourceName == "" {
		cfg.SourceName = "unknown"
	}
	return &Walker{
		source: source,
		cfg:    cfg,
		sleep:  sleepContext,
		logger: slog.Default().With("component", "walker", "source", cfg.SourceName),
	}
}

// Walk traverses the source for keywords and returns the final rank. A fetch
// failure ends the walk: the rank reached so far is returned together with
// an error wrapping ErrFetchFailure. Ranks already recorded stay recorded.
func (w *Walker) Walk(ctx context.Context, keywords []string, sink Sink) (int, error) {
	log := logger.FromContext(ctx).With("component", "walker", "source", w.cfg.SourceName)
	maxRank := sink.MaxRank()
	rank := 0
	token := ""

	for pageNo := 1; ; pageNo++ {
		if pageNo > 1 {
			if err := w.sleep(ctx, w.cfg.Delay); err != nil {
				return rank, err
			}
		}

		pageCtx, span := tracing.StartChildSpan(ctx, "page")
		span.SetAttr("page", pageNo)
		page, err := w.fetch(pageCtx, pageNo, keywords, token)
		if err != nil {
			span.SetAttr("error", err.Error())
			span.End()
			if w.cfg.Metrics != nil {
				w.cfg.Metrics.FetchFailuresTotal.WithLabelValues(w.cfg.SourceName).Inc()
			}
			log.Error("page fetch failed, ending walk", "page", pageNo, "rank", rank, "error", err)
			return rank, apperrors.Fetch("fetching page "+itoa(pageNo), err)
		}
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.PagesFetchedTotal.WithLabelValues(w.cfg.SourceName).Inc()
		}
		if w.cfg.Observer != nil {
			w.cfg.Observer(pageCtx, page, rank)
		}

		entries := usable(page.Entries)
		if len(entries) == 0 {
			span.End()
			log.Info("page yielded no usable entries, walk done", "page", pageNo, "rank", rank, "raw", len(page.Entries))
			return rank, nil
		}

		before := rank
		rank, err = sink.IngestPage(pageCtx, entries, rank)
		span.SetAttr("entries", len(entries))
		span.SetAttr("ranked", rank-before)
		span.End()
		if err != nil {
			return rank, err
		}
		log.Debug("page ingested", "page", pageNo, "entries", len(entries), "rank", rank)

		if rank >= maxRank {
			log.Info("max rank reached, walk done", "page", pageNo, "rank", rank)
			return rank, nil
		}
		if page.NextToken == "" {
			log.Info("no further page, walk done", "page", pageNo, "rank", rank)
			return rank, nil
		}
		token = page.NextToken
	}
}

// Prefetch fetches pages without ingesting them. It stops under the same
// rules as Walk, counting distinct URLs in place of ranks, so replaying the
// pages reaches the same depth a live walk would. On a fetch failure the
// pages fetched so far are returned together with the error.
func (w *Walker) Prefetch(ctx context.Context, keywords []string, maxRank int) ([]*ranking.Page, error) {
	var pages []*ranking.Page
	seen := make(map[string]struct{})
	token := ""

	for pageNo := 1; ; pageNo++ {
		if pageNo > 1 {
			if err := w.sleep(ctx, w.cfg.Delay); err != nil {
				return pages, err
			}
		}
		page, err := w.fetch(ctx, pageNo, keywords, token)
		if err != nil {
			if w.cfg.Metrics != nil {
				w.cfg.Metrics.FetchFailuresTotal.WithLabelValues(w.cfg.SourceName).Inc()
			}
			return pages, apperrors.Fetch("prefetching page "+itoa(pageNo), err)
		}
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.PagesFetchedTotal.WithLabelValues(w.cfg.SourceName).Inc()
		}
		pages = append(pages, page)
		entries := usable(page.Entries)
		for _, e := range entries {
			seen[e.URL] = struct{}{}
		}

		if len(entries) == 0 || len(seen) >= maxRank || page.NextToken == "" {
			w.logger.Info("prefetch done", "pages", len(pages), "distinct", len(seen))
			return pages, nil
		}
		token = page.NextToken
	}
}

func (w *Walker) fetch(ctx context.Context, pageNo int, keywords []string, token string) (*ranking.Page, error) {
	if pageNo == 1 {
		return w.source.FetchFirstPage(ctx, keywords)
	}
	return w.source.FetchNextPage(ctx, token)
}

// usable drops entries without a URL; they can never be ranked.
func usable(entries []ranking.Entry) []ranking.Entry {
	var out []ranking.Entry
	for _, e := range entries {
		if e.URL != "" {
			out = append(out, e)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
