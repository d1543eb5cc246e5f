package store

import (
	"encoding/json"
	"time"

	"github.com/lexia-ai/lexia/pkg/types"
)

// JobType identifies the kind of work a job performs.
type JobType string

const (
	JobTypeTranscription JobType = "transcription"
	JobTypeDiarization   JobType = "diarization"
	// JobTypeCombined is a transcription job that also runs diarization and
	// alignment.
	JobTypeCombined JobType = "transcription+diarization"
)

// IsValid reports whether t is a recognised job type.
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeTranscription, JobTypeDiarization, JobTypeCombined:
		return true
	}
	return false
}

// JobStatus is the durable lifecycle state of a job. Transitions form a DAG:
//
//	pending → queued → processing → completed
//	                        └─────→ failed
//	pending/queued → cancelled
//
// completed, failed, and cancelled are terminal and never change.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// IsValid reports whether s is a recognised job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusProcessing,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Credential is an issued API key. Only the salted hash of the bearer token
// is ever stored; the plaintext exists exactly once, in the issue response.
type Credential struct {
	ID      string
	KeyHash string

	Name      string
	Principal string
	GroupID   string

	// Permissions holds permission strings; "*" grants everything.
	Permissions []string

	// Quota is the per-minute request budget enforced by the rate limiter.
	Quota int

	Revoked bool

	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
}

// HasPermission reports whether the credential grants perm.
func (c *Credential) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == "*" || p == perm {
			return true
		}
	}
	return false
}

// Job is one durable unit of asynchronous work.
type Job struct {
	ID     string
	Type   JobType
	Status JobStatus

	// Params captures the submission parameters verbatim for later audit.
	Params map[string]any

	Principal    string
	CredentialID string

	WebhookURL string

	// QueueHandle is the task queue's opaque id for the dispatched task.
	// Empty until the dispatcher has enqueued.
	QueueHandle string

	// ProgressPercent is 0–100 and monotonically non-decreasing while the
	// job is processing. ProgressMessage is the matching human-readable
	// milestone.
	ProgressPercent int
	ProgressMessage string

	// Result is the completion payload; non-nil only when Status is
	// completed. ResultURL optionally points at a richer result resource.
	Result    json.RawMessage
	ResultURL string

	// ErrorCode and ErrorMessage are set exactly when Status is failed.
	ErrorCode    string
	ErrorMessage string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	WebhookDelivered bool
}

// Transcription is the job-scoped record holding speech-to-text output and,
// when requested, diarization output. Exactly one of AudioURL and AudioKey
// is set: URL submissions keep the source URL, uploads keep the blob key.
type Transcription struct {
	ID    string
	JobID string

	AudioURL string
	AudioKey string

	// LanguageCode is the requested language; empty means auto-detect.
	LanguageCode  string
	SpeakerLabels bool

	Text     string
	Words    []types.Word
	Segments []types.Segment

	DetectedLanguage   string
	LanguageConfidence float64

	// Confidence is the mean word confidence of the transcript.
	Confidence float64

	Speakers            []types.Speaker
	Utterances          []types.Utterance
	DiarizationSegments []types.SpeakerSegment
	DiarizationStats    *types.DiarizationStats

	ErrorMessage string

	CreatedAt   time.Time
	CompletedAt *time.Time

	Principal string
}

// JobFilter narrows ListJobs results. Principal is required; zero values of
// the other fields match everything.
type JobFilter struct {
	Principal string
	Status    JobStatus
	Type      JobType

	// Limit caps the result size (the API clamps to 100). Offset skips rows
	// for pagination. Results are ordered newest first.
	Limit  int
	Offset int
}
