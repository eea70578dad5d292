// Package series reads the rank log back out as per-document rank vectors
// aligned to a shared date axis, one group per keyword set.
package series

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/store"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
)

// Series is the history of one keyword set. Dates are run times, newest
// first; every vector in Ranks has len(Dates) elements and a nil element
// means the document was not ranked in that run.
type Series struct {
	KeywordSetID int64             `json:"keyword_set_id"`
	Keywords     string            `json:"keywords"`
	Dates        []time.Time       `json:"dates"`
	Ranks        map[string][]*int `json:"series"`
	// Order lists document labels in first-seen order: newest run first,
	// then by rank.
	Order []string `json:"order"`
	// Mine marks the labels of the operator's own documents.
	Mine map[string]bool `json:"mine,omitempty"`
}

// Result maps keyword labels ("[id]keywords") to their Series.
type Result map[string]*Series

// Labels returns the keyword labels in sorted order.
func (r Result) Labels() []string {
	labels := make([]string, 0, len(r))
	for l := range r {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Store is the read side of the ranking store.
type Store interface {
	SeriesRows(ctx context.Context, normalized string) ([]store.SeriesRow, error)
	RunsForKeywordSet(ctx context.Context, keywordSetID int64) ([]ranking.Run, error)
}

// Assembler builds Results from a Store.
type Assembler struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAssembler creates an Assembler. m may be nil.
func NewAssembler(st Store, m *metrics.Metrics) *Assembler {
	return &Assembler{
		store:   st,
		metrics: m,
		logger:  slog.Default().With("component", "series-assembler"),
	}
}

// Build assembles the series for one keyword set, or for every keyword set
// when keywords is empty.
func (a *Assembler) Build(ctx context.Context, keywords []string) (Result, error) {
	start := time.Now()
	rows, err := a.store.SeriesRows(ctx, ranking.NormalizeKeywords(keywords))
	if err != nil {
		return nil, fmt.Errorf("loading rank log: %w", err)
	}

	result := make(Result)
	// axis maps run ID to its index on the date axis of the current set.
	var (
		current *Series
		axis    map[int64]int
	)
	for _, row := range rows {
		label := row.KeywordSet.Label()
		if current == nil || current.KeywordSetID != row.KeywordSet.ID {
			current, axis, err = a.newSeries(ctx, row.KeywordSet)
			if err != nil {
				return nil, err
			}
			result[label] = current
		}

		idx, ok := axis[row.RunID]
		if !ok {
			// A run inserted between the two queries; it is not on the axis.
			continue
		}
		docLabel := row.Document.Label()
		vec, ok := current.Ranks[docLabel]
		if !ok {
			vec = make([]*int, len(current.Dates))
			current.Ranks[docLabel] = vec
			current.Order = append(current.Order, docLabel)
		}
		if row.Document.IsMine {
			current.Mine[docLabel] = true
		}
		rank := row.Rank
		vec[idx] = &rank
	}

	if a.metrics != nil {
		a.metrics.SeriesBuildDuration.Observe(time.Since(start).Seconds())
	}
	a.logger.Debug("series built", "keyword_sets", len(result), "rows", len(rows))
	return result, nil
}

func (a *Assembler) newSeries(ctx context.Context, ks ranking.KeywordSet) (*Series, map[int64]int, error) {
	runs, err := a.store.RunsForKeywordSet(ctx, ks.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading date axis for keyword set %d: %w", ks.ID, err)
	}
	s := &Series{
		KeywordSetID: ks.ID,
		Keywords:     ks.Normalized,
		Dates:        make([]time.Time, len(runs)),
		Ranks:        make(map[string][]*int),
		Mine:         make(map[string]bool),
	}
	axis := make(map[int64]int, len(runs))
	for i, run := range runs {
		s.Dates[i] = run.RanAt
		axis[run.ID] = i
	}
	return s, axis, nil
}
