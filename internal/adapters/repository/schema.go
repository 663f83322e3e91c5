package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Foreign keys are RESTRICT: a fencer or session cannot be removed while a
// bout or membership still points at it.

var postgresSchema = []string{ //nolint:gochecknoglobals // DDL
	`CREATE TABLE IF NOT EXISTS fencers (
		id    BIGSERIAL PRIMARY KEY,
		name  TEXT NOT NULL,
		age   INTEGER NOT NULL CHECK (age > 0),
		level TEXT NOT NULL,
		club  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bouts (
		id          BIGSERIAL PRIMARY KEY,
		fencer1_id  BIGINT NOT NULL REFERENCES fencers(id) ON DELETE RESTRICT,
		fencer2_id  BIGINT NOT NULL REFERENCES fencers(id) ON DELETE RESTRICT,
		score1      INTEGER NOT NULL CHECK (score1 >= 0),
		score2      INTEGER NOT NULL CHECK (score2 >= 0),
		notes       TEXT NOT NULL DEFAULT '',
		"timestamp" TIMESTAMPTZ NOT NULL,
		session_id  BIGINT NULL REFERENCES sessions(id) ON DELETE RESTRICT,
		CHECK (fencer1_id <> fencer2_id)
	)`,
	`CREATE INDEX IF NOT EXISTS bouts_timestamp_idx ON bouts ("timestamp" DESC)`,
	`CREATE INDEX IF NOT EXISTS bouts_session_idx ON bouts (session_id)`,
	`CREATE TABLE IF NOT EXISTS session_fencers (
		session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE RESTRICT,
		fencer_id  BIGINT NOT NULL REFERENCES fencers(id) ON DELETE RESTRICT,
		PRIMARY KEY (session_id, fencer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS authorized_users (
		id                BIGSERIAL PRIMARY KEY,
		email             TEXT NOT NULL UNIQUE,
		first_name        TEXT NOT NULL DEFAULT '',
		last_name         TEXT NOT NULL DEFAULT '',
		is_admin          BOOLEAN NOT NULL DEFAULT FALSE,
		password_hash     TEXT NOT NULL DEFAULT '',
		invite_token_hash TEXT NOT NULL DEFAULT '',
		invite_expires_at TIMESTAMPTZ NULL,
		added_by          TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auth_logs (
		id           BIGSERIAL PRIMARY KEY,
		action       TEXT NOT NULL,
		target_email TEXT NOT NULL,
		performed_by TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{ //nolint:gochecknoglobals // DDL
	`CREATE TABLE IF NOT EXISTS fencers (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		name  TEXT NOT NULL,
		age   INTEGER NOT NULL CHECK (age > 0),
		level TEXT NOT NULL,
		club  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bouts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		fencer1_id  INTEGER NOT NULL REFERENCES fencers(id) ON DELETE RESTRICT,
		fencer2_id  INTEGER NOT NULL REFERENCES fencers(id) ON DELETE RESTRICT,
		score1      INTEGER NOT NULL CHECK (score1 >= 0),
		score2      INTEGER NOT NULL CHECK (score2 >= 0),
		notes       TEXT NOT NULL DEFAULT '',
		"timestamp" TEXT NOT NULL,
		session_id  INTEGER NULL REFERENCES sessions(id) ON DELETE RESTRICT,
		CHECK (fencer1_id <> fencer2_id)
	)`,
	`CREATE INDEX IF NOT EXISTS bouts_timestamp_idx ON bouts ("timestamp" DESC)`,
	`CREATE INDEX IF NOT EXISTS bouts_session_idx ON bouts (session_id)`,
	`CREATE TABLE IF NOT EXISTS session_fencers (
		session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE RESTRICT,
		fencer_id  INTEGER NOT NULL REFERENCES fencers(id) ON DELETE RESTRICT,
		PRIMARY KEY (session_id, fencer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS authorized_users (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		email             TEXT NOT NULL UNIQUE,
		first_name        TEXT NOT NULL DEFAULT '',
		last_name         TEXT NOT NULL DEFAULT '',
		is_admin          INTEGER NOT NULL DEFAULT 0,
		password_hash     TEXT NOT NULL DEFAULT '',
		invite_token_hash TEXT NOT NULL DEFAULT '',
		invite_expires_at TEXT NULL,
		added_by          TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auth_logs (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		action       TEXT NOT NULL,
		target_email TEXT NOT NULL,
		performed_by TEXT NOT NULL,
		created_at   TEXT NOT NULL
	)`,
}

// migrate applies the dialect's DDL in one transaction.
func migrate(ctx context.Context, db *sql.DB, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}
