package store

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

// SeriesRow is one row of the Run ⋈ KeywordSet ⋈ RankEntry ⋈ Document join.
type SeriesRow struct {
	KeywordSet ranking.KeywordSet
	RunID      int64
	RanAt      time.Time
	Document   ranking.Document
	Rank       int
}

// SeriesRows returns the joined rank log ordered by keywords, run time
// descending, rank, then title. A non-empty normalized key restricts the
// rows to that KeywordSet.
func (s *Store) SeriesRows(ctx context.Context, normalized string) ([]SeriesRow, error) {
	q := `SELECT k.id, k.keywords, r.id, r.ran_at_us, d.id, d.url, d.title, d.is_mine, e.rank
		FROM runs r
		JOIN keyword_sets k ON k.id = r.keyword_set_id
		JOIN rank_entries e ON e.run_id = r.id
		JOIN documents d ON d.id = e.document_id`
	var args []any
	if normalized != "" {
		q += ` WHERE k.keywords = ?`
		args = append(args, normalized)
	}
	q += ` ORDER BY k.keywords, r.ran_at_us DESC, e.rank, d.title`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, apperrors.Persistence("querying series rows", err)
	}
	defer rows.Close()

	var out []SeriesRow
	for rows.Next() {
		var r SeriesRow
		var ranAt int64
		if err := rows.Scan(
			&r.KeywordSet.ID, &r.KeywordSet.Normalized,
			&r.RunID, &ranAt,
			&r.Document.ID, &r.Document.URL, &r.Document.Title, &r.Document.IsMine,
			&r.Rank,
		); err != nil {
			return nil, apperrors.Persistence("scanning series row", err)
		}
		r.RanAt = time.UnixMicro(ranAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
