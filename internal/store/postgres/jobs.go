package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lexia-ai/lexia/internal/store"
)

const jobColumns = `id, type, status, params, principal, credential_id,
	webhook_url, queue_handle, progress_percent, progress_message,
	result, result_url, error_code, error_message,
	created_at, started_at, completed_at, webhook_delivered`

// CreateJob implements [store.JobStore].
func (s *Store) CreateJob(ctx context.Context, j *store.Job) error {
	_, err := s.pool.Exec(ctx, insertJobSQL, insertJobArgs(j)...)
	if err != nil {
		return fmt.Errorf("job store: create: %w", err)
	}
	return nil
}

// CreateJobWithTranscription implements [store.JobStore]. Both rows are
// inserted in one transaction so a crash between the two inserts can never
// leave a job without its transcription.
func (s *Store) CreateJobWithTranscription(ctx context.Context, j *store.Job, t *store.Transcription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("job store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertJobSQL, insertJobArgs(j)...); err != nil {
		return fmt.Errorf("job store: create: %w", err)
	}
	if _, err := tx.Exec(ctx, insertTranscriptionSQL, insertTranscriptionArgs(t)...); err != nil {
		return fmt.Errorf("job store: create transcription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("job store: commit: %w", err)
	}
	return nil
}

const insertJobSQL = `
	INSERT INTO jobs
	    (id, type, status, params, principal, credential_id, webhook_url, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func insertJobArgs(j *store.Job) []any {
	return []any{
		j.ID,
		j.Type,
		j.Status,
		j.Params,
		j.Principal,
		j.CredentialID,
		j.WebhookURL,
		j.CreatedAt,
	}
}

// Job implements [store.JobStore].
func (s *Store) Job(ctx context.Context, id string) (*store.Job, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM   jobs
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("job store: query: %w", err)
	}
	j, err := pgx.CollectOneRow(rows, scanJob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("job store: scan: %w", err)
	}
	return &j, nil
}

// ListJobs implements [store.JobStore].
func (s *Store) ListJobs(ctx context.Context, f store.JobFilter) ([]store.Job, error) {
	args := []any{f.Principal} // $1 = principal
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"principal = $1"}
	if f.Status != "" {
		conditions = append(conditions, "status = "+next(f.Status))
	}
	if f.Type != "" {
		conditions = append(conditions, "type = "+next(f.Type))
	}

	q := "SELECT " + jobColumns + "\n" +
		"FROM   jobs\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY created_at DESC, id"

	if f.Limit > 0 {
		q += "\nLIMIT " + next(f.Limit)
	}
	if f.Offset > 0 {
		q += "\nOFFSET " + next(f.Offset)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("job store: list: %w", err)
	}
	jobs, err := pgx.CollectRows(rows, scanJob)
	if err != nil {
		return nil, fmt.Errorf("job store: scan rows: %w", err)
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	return jobs, nil
}

// SetQueueHandle implements [store.JobStore].
func (s *Store) SetQueueHandle(ctx context.Context, id, handle string) error {
	const q = `
		UPDATE jobs
		SET    queue_handle = $2,
		       status       = 'queued'
		WHERE  id     = $1
		  AND  status = 'pending'`

	return s.guardedUpdate(ctx, q, id, handle)
}

// MarkProcessing implements [store.JobStore]. The status guard is what makes
// a cancelled-while-queued job surface as ErrConflict to the worker that
// dequeued its stale task.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	const q = `
		UPDATE jobs
		SET    status     = 'processing',
		       started_at = now()
		WHERE  id     = $1
		  AND  status = 'queued'`

	return s.guardedUpdate(ctx, q, id)
}

// UpdateProgress implements [store.JobStore]. GREATEST keeps percent
// monotonic even when milestone updates from a retried task arrive out of
// order; the message only advances together with the percent.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent int, message string) error {
	const q = `
		UPDATE jobs
		SET    progress_percent = GREATEST(progress_percent, $2),
		       progress_message = CASE WHEN $2 > progress_percent THEN $3 ELSE progress_message END
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, percent, message)
	if err != nil {
		return fmt.Errorf("job store: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetResult implements [store.JobStore].
func (s *Store) SetResult(ctx context.Context, id string, result json.RawMessage, resultURL string) error {
	const q = `
		UPDATE jobs
		SET    status           = 'completed',
		       result           = $2,
		       result_url       = $3,
		       progress_percent = 100,
		       progress_message = 'Completed',
		       completed_at     = now()
		WHERE  id     = $1
		  AND  status = 'processing'`

	return s.guardedUpdate(ctx, q, id, result, resultURL)
}

// MarkFailed implements [store.JobStore].
func (s *Store) MarkFailed(ctx context.Context, id, code, message string) error {
	const q = `
		UPDATE jobs
		SET    status        = 'failed',
		       error_code    = $2,
		       error_message = $3,
		       completed_at  = now()
		WHERE  id = $1
		  AND  status NOT IN ('completed', 'failed', 'cancelled')`

	return s.guardedUpdate(ctx, q, id, code, message)
}

// CancelJob implements [store.JobStore].
func (s *Store) CancelJob(ctx context.Context, id string) error {
	const q = `
		UPDATE jobs
		SET    status       = 'cancelled',
		       completed_at = now()
		WHERE  id = $1
		  AND  status IN ('pending', 'queued')`

	return s.guardedUpdate(ctx, q, id)
}

// PendingWebhooks implements [store.JobStore]. The partial index
// idx_jobs_pending_webhooks covers exactly this predicate.
func (s *Store) PendingWebhooks(ctx context.Context, limit int) ([]store.Job, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM   jobs
		WHERE  webhook_url <> ''
		  AND  NOT webhook_delivered
		  AND  status IN ('completed', 'failed', 'cancelled')
		ORDER  BY created_at
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("job store: pending webhooks: %w", err)
	}
	jobs, err := pgx.CollectRows(rows, scanJob)
	if err != nil {
		return nil, fmt.Errorf("job store: scan rows: %w", err)
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	return jobs, nil
}

// MarkWebhookDelivered implements [store.JobStore].
func (s *Store) MarkWebhookDelivered(ctx context.Context, id string) error {
	const q = `UPDATE jobs SET webhook_delivered = TRUE WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("job store: mark webhook delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// guardedUpdate runs a status-guarded UPDATE. Zero affected rows means the
// guard failed: either the job does not exist (ErrNotFound) or it exists in
// a state the transition does not allow (ErrConflict).
func (s *Store) guardedUpdate(ctx context.Context, q, id string, extra ...any) error {
	args := append([]any{id}, extra...)
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("job store: update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	const exists = `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`
	var found bool
	if err := s.pool.QueryRow(ctx, exists, id).Scan(&found); err != nil {
		return fmt.Errorf("job store: existence check: %w", err)
	}
	if !found {
		return store.ErrNotFound
	}
	return store.ErrConflict
}

func scanJob(row pgx.CollectableRow) (store.Job, error) {
	var j store.Job
	err := row.Scan(
		&j.ID,
		&j.Type,
		&j.Status,
		&j.Params,
		&j.Principal,
		&j.CredentialID,
		&j.WebhookURL,
		&j.QueueHandle,
		&j.ProgressPercent,
		&j.ProgressMessage,
		&j.Result,
		&j.ResultURL,
		&j.ErrorCode,
		&j.ErrorMessage,
		&j.CreatedAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.WebhookDelivered,
	)
	return j, err
}
