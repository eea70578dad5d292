// Package store persists keyword sets, runs, documents and rank entries.
//
// It requires four tables (see schema.go):
//
//	keyword_sets(id, keywords UNIQUE)
//	runs(id, keyword_set_id, run_key, ran_at_us, UNIQUE(keyword_set_id, run_key))
//	documents(id, url UNIQUE, title, is_mine)
//	rank_entries(id, run_id, document_id, rank, UNIQUE(run_id, rank))
//
// Every write is committed on its own, so a crash mid-ingestion leaves a
// partially populated Run whose rank entries all reference stored documents.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/errors"
)

type Store struct {
	db     *database.Client
	logger *slog.Logger
}

func New(db *database.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "ranking-store"),
	}
}

// CreateSchema creates any missing tables and indexes.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(schemaFor(s.db.Dialect())) {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return apperrors.Persistence("creating schema", err)
		}
	}
	return nil
}

// DropSchema drops every table. All ranking history is lost.
func (s *Store) DropSchema(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return apperrors.Persistence("dropping "+t, err)
		}
	}
	s.logger.Warn("schema dropped")
	return nil
}

// Reset drops and recreates the schema.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.DropSchema(ctx); err != nil {
		return err
	}
	return s.CreateSchema(ctx)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB.PingContext(ctx)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.DB.QueryRowContext(ctx, s.db.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.DB.QueryContext(ctx, s.db.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.DB.ExecContext(ctx, s.db.Rebind(query), args...)
}

// splitStatements splits a schema script on ';'. lib/pq accepts multi
// statement scripts but modernc's Exec runs them one at a time either way.
func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
