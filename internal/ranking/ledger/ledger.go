// Package ledger is the write path of an ingestion: it turns one page of
// scraped entries into deduplicated, contiguously numbered rank entries
// under a Run.
package ledger

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking/store"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/metrics"
)

// Store is the subset of the ranking store the ledger writes through.
type Store interface {
	ResolveDocument(ctx context.Context, doc ranking.Document) (*ranking.Document, store.Outcome, error)
	HasRankEntry(ctx context.Context, runID, documentID int64) (bool, error)
	InsertRankEntry(ctx context.Context, runID, documentID int64, rank int) (*ranking.RankEntry, error)
}

// Ledger records the ranks of one Run. It holds no identity cache; every
// lookup goes to the Store, so a Ledger is cheap to create per Run.
type Ledger struct {
	store   Store
	run     ranking.Run
	maxRank int
	myURL   string
	metrics *metrics.Metrics
}

// New creates a Ledger for run. myURL marks documents whose URL contains it
// as the operator's own; an empty myURL marks nothing. m may be nil.
func New(st Store, run ranking.Run, maxRank int, myURL string, m *metrics.Metrics) *Ledger {
	return &Ledger{
		store:   st,
		run:     run,
		maxRank: maxRank,
		myURL:   myURL,
		metrics: m,
	}
}

// MaxRank is the depth at which ingestion stops.
func (l *Ledger) MaxRank() int {
	return l.maxRank
}

// IngestPage records entries in page order, continuing the numbering from
// rankSoFar, and returns the rank reached. A document already ranked in this
// Run is not recorded again and does not consume a rank. Processing stops
// mid-page once maxRank is reached.
func (l *Ledger) IngestPage(ctx context.Context, entries []ranking.Entry, rankSoFar int) (int, error) {
	log := logger.FromContext(ctx).With("component", "ledger")
	rank := rankSoFar
	if rank >= l.maxRank {
		return rank, nil
	}

	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		rank++

		doc, outcome, err := l.store.ResolveDocument(ctx, ranking.Document{
			URL:    e.URL,
			Title:  e.Title,
			IsMine: ranking.IsMine(e.URL, l.myURL),
		})
		if err != nil {
			return rank - 1, fmt.Errorf("resolving document %s: %w", e.URL, err)
		}
		if l.metrics != nil {
			l.metrics.DocumentUpserts.WithLabelValues(outcome.String()).Inc()
		}

		seen, err := l.store.HasRankEntry(ctx, l.run.ID, doc.ID)
		if err != nil {
			return rank - 1, fmt.Errorf("checking rank entry for document %d: %w", doc.ID, err)
		}
		if seen {
			rank--
			log.Debug("duplicate document skipped", "document_id", doc.ID, "url", doc.URL)
			if l.metrics != nil {
				l.metrics.DuplicatesSkipped.Inc()
			}
			continue
		}

		if _, err := l.store.InsertRankEntry(ctx, l.run.ID, doc.ID, rank); err != nil {
			return rank - 1, fmt.Errorf("recording rank %d: %w", rank, err)
		}
		if l.metrics != nil {
			l.metrics.RankEntriesTotal.Inc()
		}
		log.Debug("rank recorded", "rank", rank, "document_id", doc.ID, "is_mine", doc.IsMine)

		if rank >= l.maxRank {
			return l.maxRank, nil
		}
	}
	return rank, nil
}
