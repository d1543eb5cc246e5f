// Package store defines the durable persistence contracts for Lexia: jobs,
// transcriptions, and credentials.
//
// The database is the single source of truth for job state. Status
// transitions are guarded at the storage layer (an update names both the new
// and the required current status), which is what makes transitions totally
// ordered per job even with multiple workers and API instances running.
//
// Implementations: memstore (in-memory, tests and dev) and postgres
// (production, pgx).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/lexia-ai/lexia/pkg/types"
)

// ErrNotFound is returned when no row exists for the requested id. Handlers
// convert both this and wrong-principal access into the same not-found
// response so that existence never leaks across principals.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a guarded status transition matched no row,
// i.e. the job was not in the state the transition requires.
var ErrConflict = errors.New("store: conflicting job state")

// CredentialStore persists issued API credentials.
type CredentialStore interface {
	// CreateCredential inserts a new credential row.
	CreateCredential(ctx context.Context, c *Credential) error

	// CredentialByHash looks a credential up by its salted token hash.
	// Returns ErrNotFound for unknown hashes.
	CredentialByHash(ctx context.Context, keyHash string) (*Credential, error)

	// CredentialByID looks a credential up by id.
	CredentialByID(ctx context.Context, id string) (*Credential, error)

	// ListCredentials returns the principal's credentials, newest first.
	// Revoked credentials are included only when includeRevoked is set.
	ListCredentials(ctx context.Context, principal string, includeRevoked bool) ([]Credential, error)

	// RevokeCredential marks the credential revoked. changed is false when
	// it was already revoked (revocation is idempotent).
	RevokeCredential(ctx context.Context, id string) (changed bool, err error)

	// DeleteCredential removes the credential row entirely.
	DeleteCredential(ctx context.Context, id string) error

	// TouchCredential updates last_used_at. Best-effort: callers fire it in
	// the background and only log failures.
	TouchCredential(ctx context.Context, id string, t time.Time) error
}

// JobStore persists jobs and drives their guarded status transitions.
type JobStore interface {
	// CreateJob inserts a job with status pending.
	CreateJob(ctx context.Context, j *Job) error

	// CreateJobWithTranscription inserts a job and its transcription row in
	// a single transaction; either both exist afterwards or neither does.
	CreateJobWithTranscription(ctx context.Context, j *Job, t *Transcription) error

	// Job returns the job by id, or ErrNotFound.
	Job(ctx context.Context, id string) (*Job, error)

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, f JobFilter) ([]Job, error)

	// SetQueueHandle records the queue's task handle and moves
	// pending → queued. Returns ErrConflict if the job is not pending.
	SetQueueHandle(ctx context.Context, id, handle string) error

	// MarkProcessing moves queued → processing and stamps started_at.
	// Returns ErrConflict when the job is not queued — in particular when it
	// was cancelled while waiting, which is how workers learn to drop a
	// task.
	MarkProcessing(ctx context.Context, id string) error

	// UpdateProgress advances the progress milestone. Percent is clamped to
	// be monotonically non-decreasing; regressions are silently ignored.
	UpdateProgress(ctx context.Context, id string, percent int, message string) error

	// SetResult moves processing → completed, storing the result payload,
	// progress 100, and completed_at.
	SetResult(ctx context.Context, id string, result json.RawMessage, resultURL string) error

	// MarkFailed moves the job to failed with the given error, stamping
	// completed_at. Terminal states are left untouched (ErrConflict).
	MarkFailed(ctx context.Context, id, code, message string) error

	// CancelJob moves pending/queued → cancelled. Returns ErrConflict when
	// the job is in any other state (cancel of a running job is refused).
	CancelJob(ctx context.Context, id string) error

	// PendingWebhooks lists terminal jobs with a webhook URL that has not
	// been marked delivered, oldest first, capped at limit.
	PendingWebhooks(ctx context.Context, limit int) ([]Job, error)

	// MarkWebhookDelivered flags the job's webhook as delivered.
	MarkWebhookDelivered(ctx context.Context, id string) error
}

// TranscriptionStore persists transcription results.
type TranscriptionStore interface {
	// Transcription returns the row by id, or ErrNotFound.
	Transcription(ctx context.Context, id string) (*Transcription, error)

	// TranscriptionByJobID resolves the row through its job reference.
	TranscriptionByJobID(ctx context.Context, jobID string) (*Transcription, error)

	// SetTranscriptionResult stores the speech-to-text output.
	SetTranscriptionResult(ctx context.Context, id string, r *TranscriptionResult) error

	// SetDiarizationResult stores the speaker-diarization output.
	SetDiarizationResult(ctx context.Context, id string, r *DiarizationResult) error

	// DeleteTranscription removes the row. The caller deletes the audio blob.
	DeleteTranscription(ctx context.Context, id string) error
}

// Store is the full persistence surface the application is wired with.
type Store interface {
	CredentialStore
	JobStore
	TranscriptionStore
}

// TranscriptionResult carries the speech-to-text fields persisted after the
// STT stage. Times are integer milliseconds.
type TranscriptionResult struct {
	Text               string
	Words              []types.Word
	Segments           []types.Segment
	DetectedLanguage   string
	LanguageConfidence float64
	Confidence         float64
}

// DiarizationResult carries the speaker fields persisted after diarization
// and alignment.
type DiarizationResult struct {
	Speakers            []types.Speaker
	Utterances          []types.Utterance
	DiarizationSegments []types.SpeakerSegment
	DiarizationStats    *types.DiarizationStats
}
