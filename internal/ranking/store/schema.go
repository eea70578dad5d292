package store

import "github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/database"

// Tables, in dependency order.
var tables = []string{"rank_entries", "runs", "documents", "keyword_sets"}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS keyword_sets (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	keywords TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	keyword_set_id INTEGER NOT NULL REFERENCES keyword_sets(id),
	run_key        TEXT NOT NULL,
	ran_at_us      INTEGER NOT NULL,
	UNIQUE (keyword_set_id, run_key)
);
CREATE INDEX IF NOT EXISTS idx_runs_keyword_set ON runs(keyword_set_id, ran_at_us);

CREATE TABLE IF NOT EXISTS documents (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	url     TEXT NOT NULL UNIQUE,
	title   TEXT NOT NULL DEFAULT '',
	is_mine INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rank_entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	document_id INTEGER NOT NULL REFERENCES documents(id),
	rank        INTEGER NOT NULL,
	UNIQUE (run_id, rank)
);
CREATE INDEX IF NOT EXISTS idx_rank_entries_run_doc ON rank_entries(run_id, document_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS keyword_sets (
	id       BIGSERIAL PRIMARY KEY,
	keywords TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS runs (
	id             BIGSERIAL PRIMARY KEY,
	keyword_set_id BIGINT NOT NULL REFERENCES keyword_sets(id),
	run_key        TEXT NOT NULL,
	ran_at_us      BIGINT NOT NULL,
	UNIQUE (keyword_set_id, run_key)
);
CREATE INDEX IF NOT EXISTS idx_runs_keyword_set ON runs(keyword_set_id, ran_at_us);

CREATE TABLE IF NOT EXISTS documents (
	id      BIGSERIAL PRIMARY KEY,
	url     TEXT NOT NULL UNIQUE,
	title   TEXT NOT NULL DEFAULT '',
	is_mine BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS rank_entries (
	id          BIGSERIAL PRIMARY KEY,
	run_id      BIGINT NOT NULL REFERENCES runs(id),
	document_id BIGINT NOT NULL REFERENCES documents(id),
	rank        INTEGER NOT NULL,
	UNIQUE (run_id, rank)
);
CREATE INDEX IF NOT EXISTS idx_rank_entries_run_doc ON rank_entries(run_id, document_id);
`

func schemaFor(d database.Dialect) string {
	if d == database.Postgres {
		return postgresSchema
	}
	return sqliteSchema
}
