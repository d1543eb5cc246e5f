// Package dispatch turns accepted API submissions into queued jobs.
//
// Submission is two steps with distinct failure modes: first the job row
// (and its transcription row, when one applies) is persisted with status
// pending, then the task is enqueued and the job moves to queued with the
// queue's handle recorded. A crash between the two leaves a pending row that
// is visible, cancellable, and never silently lost.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lexia-ai/lexia/internal/queue"
	"github.com/lexia-ai/lexia/internal/store"
)

// Dispatcher persists and enqueues jobs.
type Dispatcher struct {
	jobs  store.JobStore
	queue queue.Queue
	log   *slog.Logger
}

// New creates a Dispatcher.
func New(jobs store.JobStore, q queue.Queue, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{jobs: jobs, queue: q, log: log}
}

// Submission describes one accepted request.
type Submission struct {
	Type         store.JobType
	Principal    string
	CredentialID string
	WebhookURL   string

	// Params is stored verbatim on the job row for audit.
	Params map[string]any

	// AudioURL or BlobKey, exactly one set; validated by the handler.
	AudioURL string
	BlobKey  string

	Language      string
	SpeakerLabels bool

	NumSpeakers int
	MinSpeakers int
	MaxSpeakers int
}

// Submit persists the job and hands it to the queue. The returned job is in
// status queued on full success, pending together with a non-nil error when
// enqueueing or handle recording failed, or cancelled when a cancel raced
// the enqueue. The returned status is always the row's actual state.
func (d *Dispatcher) Submit(ctx context.Context, sub Submission) (*store.Job, error) {
	job := d.newJob(sub)

	var tr *store.Transcription
	if sub.Type == store.JobTypeTranscription || sub.Type == store.JobTypeCombined {
		tr = &store.Transcription{
			ID:            uuid.NewString(),
			JobID:         job.ID,
			AudioURL:      sub.AudioURL,
			AudioKey:      sub.BlobKey,
			LanguageCode:  sub.Language,
			SpeakerLabels: sub.SpeakerLabels,
			CreatedAt:     job.CreatedAt,
			Principal:     sub.Principal,
		}
	}

	var err error
	if tr != nil {
		err = d.jobs.CreateJobWithTranscription(ctx, job, tr)
	} else {
		err = d.jobs.CreateJob(ctx, job)
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: persist job: %w", err)
	}

	handle, err := d.queue.Enqueue(ctx, d.newTask(job, sub))
	if err != nil {
		// The pending row stays; callers see the job and can retry or
		// cancel it.
		d.log.Error("enqueue failed, job left pending",
			"job_id", job.ID, "error", err)
		return job, fmt.Errorf("dispatch: enqueue job %s: %w", job.ID, err)
	}

	if err := d.jobs.SetQueueHandle(ctx, job.ID, handle); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Cancelled in the window between insert and enqueue; the
			// worker's own status guard will drop the task. Report the row's
			// actual state rather than the pending copy we hold.
			d.log.Warn("job cancelled before queue handle recorded",
				"job_id", job.ID, "handle", handle)
			if current, jerr := d.jobs.Job(ctx, job.ID); jerr == nil {
				return current, nil
			}
			return job, nil
		}
		// Any other failure leaves a pending row whose task the worker will
		// drop. Surface it so the caller does not report the job as queued.
		d.log.Error("record queue handle failed, job left pending",
			"job_id", job.ID, "handle", handle, "error", err)
		return job, fmt.Errorf("dispatch: record queue handle for job %s: %w", job.ID, err)
	}

	job.Status = store.StatusQueued
	job.QueueHandle = handle
	d.log.Info("job dispatched",
		"job_id", job.ID,
		"job_type", job.Type,
		"principal", job.Principal)
	return job, nil
}

// Cancel moves the job to cancelled and revokes its queued task.
func (d *Dispatcher) Cancel(ctx context.Context, job *store.Job) error {
	if err := d.jobs.CancelJob(ctx, job.ID); err != nil {
		return err
	}
	if job.QueueHandle != "" {
		if err := d.queue.Revoke(ctx, job.QueueHandle); err != nil {
			// The DB row is already cancelled; the worker's MarkProcessing
			// guard makes this best-effort.
			d.log.Warn("revoke queued task failed",
				"job_id", job.ID, "handle", job.QueueHandle, "error", err)
		}
	}
	d.log.Info("job cancelled", "job_id", job.ID)
	return nil
}

func (d *Dispatcher) newJob(sub Submission) *store.Job {
	return &store.Job{
		ID:           uuid.NewString(),
		Type:         sub.Type,
		Status:       store.StatusPending,
		Params:       sub.Params,
		Principal:    sub.Principal,
		CredentialID: sub.CredentialID,
		WebhookURL:   sub.WebhookURL,
		CreatedAt:    time.Now().UTC(),
	}
}

func (d *Dispatcher) newTask(job *store.Job, sub Submission) *queue.Task {
	return &queue.Task{
		JobID:         job.ID,
		Type:          job.Type,
		AudioURL:      sub.AudioURL,
		BlobKey:       sub.BlobKey,
		Language:      sub.Language,
		SpeakerLabels: sub.SpeakerLabels,
		NumSpeakers:   sub.NumSpeakers,
		MinSpeakers:   sub.MinSpeakers,
		MaxSpeakers:   sub.MaxSpeakers,
		EnqueuedAt:    time.Now().UTC(),
	}
}
