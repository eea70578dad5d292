package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

// ResolveKeywordSet interns keywords and returns the KeywordSet identity.
// An existing set is returned without any write; the key is immutable so
// there is no update branch.
func (s *Store) ResolveKeywordSet(ctx context.Context, keywords []string) (*ranking.KeywordSet, error) {
	normalized := ranking.NormalizeKeywords(keywords)
	ks, err := s.FindKeywordSet(ctx, normalized)
	if err == nil {
		return ks, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if _, err := s.exec(ctx,
		`INSERT INTO keyword_sets (keywords) VALUES (?) ON CONFLICT (keywords) DO NOTHING`,
		normalized,
	); err != nil {
		return nil, apperrors.Persistence("inserting keyword set", err)
	}
	ks, err = s.FindKeywordSet(ctx, normalized)
	if err != nil {
		return nil, err
	}
	s.logger.Info("keyword set created", "keyword_set_id", ks.ID, "keywords", normalized)
	return ks, nil
}

// FindKeywordSet looks a KeywordSet up by its normalized key. It returns
// ErrNotFound when no such set exists.
func (s *Store) FindKeywordSet(ctx context.Context, normalized string) (*ranking.KeywordSet, error) {
	var ks ranking.KeywordSet
	err := s.queryRow(ctx,
		`SELECT id, keywords FROM keyword_sets WHERE keywords = ?`, normalized,
	).Scan(&ks.ID, &ks.Normalized)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrNotFound, 404, "keyword set %q", normalized)
	}
	if err != nil {
		return nil, apperrors.Persistence("querying keyword set", err)
	}
	return &ks, nil
}

// ListKeywordSets returns every KeywordSet ordered by its key.
func (s *Store) ListKeywordSets(ctx context.Context) ([]ranking.KeywordSet, error) {
	rows, err := s.query(ctx, `SELECT id, keywords FROM keyword_sets ORDER BY keywords`)
	if err != nil {
		return nil, apperrors.Persistence("listing keyword sets", err)
	}
	defer rows.Close()

	var sets []ranking.KeywordSet
	for rows.Next() {
		var ks ranking.KeywordSet
		if err := rows.Scan(&ks.ID, &ks.Normalized); err != nil {
			return nil, apperrors.Persistence("scanning keyword set", err)
		}
		sets = append(sets, ks)
	}
	return sets, rows.Err()
}
