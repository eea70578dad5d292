package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

// ResolveRun returns the Run identified by (keywordSetID, key), creating it
// at ranAt when absent. created is false when an existing Run was reused;
// its original timestamp is kept.
func (s *Store) ResolveRun(ctx context.Context, keywordSetID int64, key string, ranAt time.Time) (*ranking.Run, bool, error) {
	run, err := s.findRun(ctx, keywordSetID, key)
	if err != nil {
		return nil, false, err
	}
	if run != nil {
		return run, false, nil
	}

	res, err := s.exec(ctx,
		`INSERT INTO runs (keyword_set_id, run_key, ran_at_us) VALUES (?, ?, ?)
		ON CONFLICT (keyword_set_id, run_key) DO NOTHING`,
		keywordSetID, key, ranAt.UnixMicro(),
	)
	if err != nil {
		return nil, false, apperrors.Persistence("inserting run", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, apperrors.Persistence("inserting run", err)
	}

	run, err = s.findRun(ctx, keywordSetID, key)
	if err != nil {
		return nil, false, err
	}
	if run == nil {
		return nil, false, apperrors.Persistence("inserting run", sql.ErrNoRows)
	}
	return run, inserted == 1, nil
}

func (s *Store) findRun(ctx context.Context, keywordSetID int64, key string) (*ranking.Run, error) {
	var run ranking.Run
	var ranAt int64
	err := s.queryRow(ctx,
		`SELECT id, keyword_set_id, run_key, ran_at_us FROM runs
		WHERE keyword_set_id = ? AND run_key = ?`,
		keywordSetID, key,
	).Scan(&run.ID, &run.KeywordSetID, &run.Key, &ranAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("querying run", err)
	}
	run.RanAt = time.UnixMicro(ranAt)
	return &run, nil
}

// RunsForKeywordSet returns the Runs of one KeywordSet, newest first. This is
// the shared date axis of every series under that set.
func (s *Store) RunsForKeywordSet(ctx context.Context, keywordSetID int64) ([]ranking.Run, error) {
	rows, err := s.query(ctx,
		`SELECT id, keyword_set_id, run_key, ran_at_us FROM runs
		WHERE keyword_set_id = ? ORDER BY ran_at_us DESC, id DESC`,
		keywordSetID,
	)
	if err != nil {
		return nil, apperrors.Persistence("listing runs", err)
	}
	defer rows.Close()

	var runs []ranking.Run
	for rows.Next() {
		var run ranking.Run
		var ranAt int64
		if err := rows.Scan(&run.ID, &run.KeywordSetID, &run.Key, &ranAt); err != nil {
			return nil, apperrors.Persistence("scanning run", err)
		}
		run.RanAt = time.UnixMicro(ranAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
