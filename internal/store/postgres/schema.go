// Package postgres provides the PostgreSQL-backed implementation of
// [store.Store].
//
// A single [pgxpool.Pool] backs all three stores. Status transitions are
// expressed as guarded UPDATEs (the WHERE clause names the required current
// status) so that concurrent workers and API instances can never race a job
// into an invalid state: the row either transitions exactly once or the
// statement affects nothing and the caller gets [store.ErrConflict].
//
// Usage:
//
//	st, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — credentials
// ─────────────────────────────────────────────────────────────────────────────

const ddlCredentials = `
CREATE TABLE IF NOT EXISTS credentials (
    id           TEXT         PRIMARY KEY,
    key_hash     TEXT         NOT NULL,
    name         TEXT         NOT NULL DEFAULT '',
    principal    TEXT         NOT NULL,
    group_id     TEXT         NOT NULL DEFAULT '',
    permissions  TEXT[]       NOT NULL DEFAULT '{}',
    quota        INTEGER      NOT NULL DEFAULT 0,
    revoked      BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    last_used_at TIMESTAMPTZ,
    expires_at   TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_credentials_key_hash
    ON credentials (key_hash);

CREATE INDEX IF NOT EXISTS idx_credentials_principal
    ON credentials (principal);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — jobs
// ─────────────────────────────────────────────────────────────────────────────

const ddlJobs = `
CREATE TABLE IF NOT EXISTS jobs (
    id                TEXT         PRIMARY KEY,
    type              TEXT         NOT NULL,
    status            TEXT         NOT NULL DEFAULT 'pending',
    params            JSONB        NOT NULL DEFAULT '{}',
    principal         TEXT         NOT NULL,
    credential_id     TEXT         NOT NULL DEFAULT '',
    webhook_url       TEXT         NOT NULL DEFAULT '',
    queue_handle      TEXT         NOT NULL DEFAULT '',
    progress_percent  INTEGER      NOT NULL DEFAULT 0,
    progress_message  TEXT         NOT NULL DEFAULT '',
    result            JSONB,
    result_url        TEXT         NOT NULL DEFAULT '',
    error_code        TEXT         NOT NULL DEFAULT '',
    error_message     TEXT         NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    started_at        TIMESTAMPTZ,
    completed_at      TIMESTAMPTZ,
    webhook_delivered BOOLEAN      NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_jobs_principal_created
    ON jobs (principal, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_jobs_status
    ON jobs (status);

CREATE INDEX IF NOT EXISTS idx_jobs_pending_webhooks
    ON jobs (created_at)
    WHERE webhook_url <> ''
      AND NOT webhook_delivered
      AND status IN ('completed', 'failed', 'cancelled');
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — transcriptions
// ─────────────────────────────────────────────────────────────────────────────

const ddlTranscriptions = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id                   TEXT              PRIMARY KEY,
    job_id               TEXT              NOT NULL REFERENCES jobs (id) ON DELETE CASCADE,
    audio_url            TEXT              NOT NULL DEFAULT '',
    audio_key            TEXT              NOT NULL DEFAULT '',
    language_code        TEXT              NOT NULL DEFAULT '',
    speaker_labels       BOOLEAN           NOT NULL DEFAULT FALSE,
    text                 TEXT              NOT NULL DEFAULT '',
    words                JSONB             NOT NULL DEFAULT '[]',
    segments             JSONB             NOT NULL DEFAULT '[]',
    detected_language    TEXT              NOT NULL DEFAULT '',
    language_confidence  DOUBLE PRECISION  NOT NULL DEFAULT 0,
    confidence           DOUBLE PRECISION  NOT NULL DEFAULT 0,
    speakers             JSONB             NOT NULL DEFAULT '[]',
    utterances           JSONB             NOT NULL DEFAULT '[]',
    diarization_segments JSONB             NOT NULL DEFAULT '[]',
    diarization_stats    JSONB             NOT NULL DEFAULT 'null',
    error_message        TEXT              NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ       NOT NULL DEFAULT now(),
    completed_at         TIMESTAMPTZ,
    principal            TEXT              NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_transcriptions_job_id
    ON transcriptions (job_id);
`

// Migrate creates or ensures all required tables and indexes exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlCredentials,
		ddlJobs,
		ddlTranscriptions,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
