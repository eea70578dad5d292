package store

import (
	"context"
	"database/sql"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

// HasRankEntry reports whether runID already ranks documentID.
func (s *Store) HasRankEntry(ctx context.Context, runID, documentID int64) (bool, error) {
	var one int
	err := s.queryRow(ctx,
		`SELECT 1 FROM rank_entries WHERE run_id = ? AND document_id = ? LIMIT 1`,
		runID, documentID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Persistence("querying rank entry", err)
	}
	return true, nil
}

// InsertRankEntry appends one rank entry. A (run, rank) collision surfaces as
// a PersistenceFailure.
func (s *Store) InsertRankEntry(ctx context.Context, runID, documentID int64, rank int) (*ranking.RankEntry, error) {
	e := ranking.RankEntry{RunID: runID, DocumentID: documentID, Rank: rank}
	err := s.queryRow(ctx,
		`INSERT INTO rank_entries (run_id, document_id, rank) VALUES (?, ?, ?) RETURNING id`,
		runID, documentID, rank,
	).Scan(&e.ID)
	if err != nil {
		return nil, apperrors.Persistence("inserting rank entry", err)
	}
	return &e, nil
}

// RankEntries returns the entries of one Run ordered by rank.
func (s *Store) RankEntries(ctx context.Context, runID int64) ([]ranking.RankEntry, error) {
	rows, err := s.query(ctx,
		`SELECT id, run_id, document_id, rank FROM rank_entries WHERE run_id = ? ORDER BY rank`,
		runID,
	)
	if err != nil {
		return nil, apperrors.Persistence("listing rank entries", err)
	}
	defer rows.Close()

	var entries []ranking.RankEntry
	for rows.Next() {
		var e ranking.RankEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.DocumentID, &e.Rank); err != nil {
			return nil, apperrors.Persistence("scanning rank entry", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MaxRank returns the highest rank recorded for runID, or 0.
func (s *Store) MaxRank(ctx context.Context, runID int64) (int, error) {
	var max sql.NullInt64
	if err := s.queryRow(ctx,
		`SELECT MAX(rank) FROM rank_entries WHERE run_id = ?`, runID,
	).Scan(&max); err != nil {
		return 0, apperrors.Persistence("querying max rank", err)
	}
	return int(max.Int64), nil
}
