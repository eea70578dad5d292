package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

// Outcome reports which branch of an upsert was taken.
type Outcome int

const (
	Unchanged Outcome = iota
	Created
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// ResolveDocument interns doc by URL. A new URL is inserted; an existing one
// has its title and is-mine flag overwritten only where they differ, and is
// not written at all when both match.
func (s *Store) ResolveDocument(ctx context.Context, doc ranking.Document) (*ranking.Document, Outcome, error) {
	existing, err := s.FindDocument(ctx, doc.URL)
	if err != nil {
		return nil, Unchanged, err
	}
	if existing == nil {
		res, err := s.exec(ctx,
			`INSERT INTO documents (url, title, is_mine) VALUES (?, ?, ?) ON CONFLICT (url) DO NOTHING`,
			doc.URL, doc.Title, doc.IsMine,
		)
		if err != nil {
			return nil, Unchanged, apperrors.Persistence("inserting document", err)
		}
		existing, err = s.FindDocument(ctx, doc.URL)
		if err != nil {
			return nil, Unchanged, err
		}
		if existing == nil {
			return nil, Unchanged, apperrors.Persistence("inserting document", sql.ErrNoRows)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return existing, Created, nil
		}
	}

	var sets []string
	var args []any
	if existing.Title != doc.Title {
		sets = append(sets, "title = ?")
		args = append(args, doc.Title)
		existing.Title = doc.Title
	}
	if existing.IsMine != doc.IsMine {
		sets = append(sets, "is_mine = ?")
		args = append(args, doc.IsMine)
		existing.IsMine = doc.IsMine
	}
	if len(sets) == 0 {
		return existing, Unchanged, nil
	}

	args = append(args, existing.ID)
	if _, err := s.exec(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	); err != nil {
		return nil, Unchanged, apperrors.Persistence("updating document", err)
	}
	return existing, Updated, nil
}

// FindDocument returns the Document stored under url, or nil.
func (s *Store) FindDocument(ctx context.Context, url string) (*ranking.Document, error) {
	var d ranking.Document
	err := s.queryRow(ctx,
		`SELECT id, url, title, is_mine FROM documents WHERE url = ?`, url,
	).Scan(&d.ID, &d.URL, &d.Title, &d.IsMine)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Persistence("querying document", err)
	}
	return &d, nil
}
