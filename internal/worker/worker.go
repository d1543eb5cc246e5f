// Package worker executes queued jobs.
//
// A Pool runs a fixed number of goroutines, each looping dequeue → process.
// All job state changes go through the store's guarded transitions, so a
// task whose job was cancelled while queued fails MarkProcessing and is
// dropped without side effects. Failures are retried in place up to the
// attempt budget, then the job is marked failed; either way a terminal job
// gets its webhook dispatched.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexia-ai/lexia/internal/observe"
	"github.com/lexia-ai/lexia/internal/queue"
	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/internal/webhook"
	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	"github.com/lexia-ai/lexia/pkg/backend/stt"
	"github.com/lexia-ai/lexia/pkg/blob"
)

// Pool is a fixed-size worker pool bound to one queue.
type Pool struct {
	store    store.Store
	queue    queue.Queue
	blobs    blob.Store
	stt      stt.Backend
	diar     diarization.Backend
	webhooks *webhook.Dispatcher
	log      *slog.Logger
	metrics  *observe.Metrics

	concurrency int
	maxAttempts int
	retryDelay  time.Duration

	// httpClient downloads URL-submitted audio.
	httpClient *http.Client

	// wg tracks in-flight webhook deliveries so Run does not return while
	// one is mid-flight.
	wg sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithConcurrency sets the number of concurrent task executors (default 1).
func WithConcurrency(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRetry sets the per-task attempt budget and the fixed delay between
// attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Pool) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
		p.retryDelay = delay
	}
}

// WithHTTPClient replaces the audio download client (primarily for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pool) { p.httpClient = c }
}

// WithMetrics replaces the metrics instance (primarily for tests).
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// New creates a Pool. diar may be nil when no diarization backend is
// configured; tasks that need one then fail with a clear error.
func New(st store.Store, q queue.Queue, blobs blob.Store, sttBackend stt.Backend,
	diar diarization.Backend, webhooks *webhook.Dispatcher, log *slog.Logger, opts ...Option) *Pool {
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		store:       st,
		queue:       q,
		blobs:       blobs,
		stt:         sttBackend,
		diar:        diar,
		webhooks:    webhooks,
		log:         log,
		metrics:     observe.DefaultMetrics(),
		concurrency: 1,
		maxAttempts: 3,
		retryDelay:  time.Minute,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks, executing tasks until the context is cancelled or the queue
// closes. It returns nil on clean shutdown.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("worker pool starting",
		"concurrency", p.concurrency,
		"stt_backend", p.stt.Name())

	g, ctx := errgroup.WithContext(ctx)
	for i := range p.concurrency {
		g.Go(func() error { return p.loop(ctx, i) })
	}
	err := g.Wait()
	p.wg.Wait()

	if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrClosed) {
		return nil
	}
	return err
}

func (p *Pool) loop(ctx context.Context, id int) error {
	log := p.log.With("worker", id)
	log.Debug("worker loop started")
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		p.process(ctx, task)
	}
}

// process runs one task to a terminal job state.
func (p *Pool) process(ctx context.Context, task *queue.Task) {
	log := p.log.With("job_id", task.JobID, "job_type", task.Type)

	if err := p.store.MarkProcessing(ctx, task.JobID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Cancelled (or already claimed) while queued.
			log.Info("dropping stale task")
			return
		}
		log.Error("claim job failed", "error", err)
		return
	}
	log.Info("job started")

	ctx, span := observe.StartJobSpan(ctx, task.JobID, string(task.Type))
	defer span.End()

	start := time.Now()
	p.metrics.JobStarted(ctx)
	if !task.EnqueuedAt.IsZero() {
		p.metrics.RecordQueueWait(ctx, string(task.Type), start.Sub(task.EnqueuedAt))
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			log.Warn("retrying job", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = p.maxAttempts // no point retrying a dead context
			case <-time.After(p.retryDelay):
			}
		}

		lastErr = p.execute(ctx, task)
		if lastErr == nil {
			log.Info("job completed")
			p.recordOutcome(ctx, task, start, string(store.StatusCompleted))
			p.notify(ctx, task.JobID)
			return
		}
		if permanentErr(lastErr) {
			break
		}
	}

	code, msg := classify(lastErr)
	log.Error("job failed", "code", code, "error", lastErr)
	p.recordOutcome(ctx, task, start, string(store.StatusFailed))
	if err := p.store.MarkFailed(ctx, task.JobID, code, msg); err != nil {
		log.Error("mark failed errored", "error", err)
		return
	}
	p.notify(ctx, task.JobID)
}

// recordOutcome closes out the job's metrics once it reaches a terminal
// state.
func (p *Pool) recordOutcome(ctx context.Context, task *queue.Task, start time.Time, status string) {
	p.metrics.JobFinished(ctx)
	p.metrics.RecordJobDuration(ctx, string(task.Type), status, time.Since(start))
	p.metrics.RecordJobProcessed(ctx, string(task.Type), status)
}

// notify dispatches the job's webhook in the background. The sweeper covers
// any delivery that outlives the process.
func (p *Pool) notify(ctx context.Context, jobID string) {
	job, err := p.store.Job(ctx, jobID)
	if err != nil {
		p.log.Error("load job for webhook failed", "job_id", jobID, "error", err)
		return
	}
	if job.WebhookURL == "" || job.WebhookDelivered {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
		defer cancel()
		if err := p.webhooks.Deliver(deliverCtx, job); err != nil {
			p.log.Warn("webhook delivery failed, sweeper will retry",
				"job_id", jobID, "error", err)
		}
	}()
}

func (p *Pool) execute(ctx context.Context, task *queue.Task) error {
	switch task.Type {
	case store.JobTypeTranscription, store.JobTypeCombined:
		return p.runTranscription(ctx, task)
	case store.JobTypeDiarization:
		return p.runDiarization(ctx, task)
	default:
		return &taskError{code: codeInternal, permanent: true,
			err: fmt.Errorf("unknown job type %q", task.Type)}
	}
}

// Job-row error codes, shared with the API's error envelope so a polled
// failed job and a webhook payload name the failure the same way.
const (
	codeSTTError         = "stt_service_error"
	codeDiarizationError = "diarization_service_error"
	codeInternal         = "internal_error"
)

// taskError attaches an error code and a retryability verdict to a pipeline
// failure.
type taskError struct {
	code      string
	permanent bool
	err       error
}

func (e *taskError) Error() string { return e.err.Error() }
func (e *taskError) Unwrap() error { return e.err }

func permanentErr(err error) bool {
	var te *taskError
	return errors.As(err, &te) && te.permanent
}

func classify(err error) (code, msg string) {
	var te *taskError
	if errors.As(err, &te) {
		return te.code, te.err.Error()
	}
	if err == nil {
		return codeInternal, "unknown failure"
	}
	return codeInternal, err.Error()
}
