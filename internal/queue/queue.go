// Package queue defines the task queue contract between the API's dispatcher
// and the worker pool.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/lexia-ai/lexia/internal/store"
)

// ErrClosed is returned by Dequeue once the queue has shut down.
var ErrClosed = errors.New("queue: closed")

// Task is the wire descriptor handed from dispatcher to worker. It carries
// only what the worker needs to start; everything else lives in the job row.
type Task struct {
	// ID is the queue handle, assigned at enqueue time.
	ID string `json:"id"`

	JobID string        `json:"job_id"`
	Type  store.JobType `json:"job_type"`

	// Exactly one of AudioURL and BlobKey is set.
	AudioURL string `json:"audio_url,omitempty"`
	BlobKey  string `json:"blob_key,omitempty"`

	Language      string `json:"language,omitempty"`
	SpeakerLabels bool   `json:"speaker_labels,omitempty"`

	NumSpeakers int `json:"num_speakers,omitempty"`
	MinSpeakers int `json:"min_speakers,omitempty"`
	MaxSpeakers int `json:"max_speakers,omitempty"`

	// EnqueuedAt is stamped by the dispatcher; workers use it to measure
	// queue wait.
	EnqueuedAt time.Time `json:"enqueued_at,omitempty"`
}

// Queue is a FIFO task queue shared by API and worker processes.
type Queue interface {
	// Enqueue appends the task and returns its queue handle. The handle is
	// also written into task.ID before marshalling.
	Enqueue(ctx context.Context, task *Task) (handle string, err error)

	// Dequeue blocks until a task is available, the context is cancelled,
	// or the queue closes (ErrClosed). Revoked tasks are dropped silently.
	Dequeue(ctx context.Context) (*Task, error)

	// Revoke marks the handle so the task is discarded if still queued.
	// Revoking an already-consumed handle is a no-op.
	Revoke(ctx context.Context, handle string) error
}
