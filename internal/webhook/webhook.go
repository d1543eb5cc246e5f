// Package webhook delivers job-completion notifications.
//
// A delivery is one POST of the event payload to the job's webhook URL. Any
// 2xx response counts as delivered; anything else is retried on a fixed
// interval up to the attempt cap, then given up for this round. The
// [Sweeper] periodically re-drives undelivered webhooks from the database,
// so a crashed process or an endpoint that was down for an hour still
// converges on delivery.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lexia-ai/lexia/internal/observe"
	"github.com/lexia-ai/lexia/internal/store"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 30 * time.Second
	defaultAttempts   = 5
)

// Payload is the JSON body POSTed to webhook endpoints.
type Payload struct {
	// Event is "job." followed by the terminal status, e.g. "job.completed".
	Event string `json:"event"`

	JobID   string          `json:"job_id"`
	JobType store.JobType   `json:"job_type"`
	Status  store.JobStatus `json:"status"`

	CompletedAt *time.Time    `json:"completed_at"`
	ResultURL   string        `json:"result_url,omitempty"`
	Error       *PayloadError `json:"error,omitempty"`
}

// PayloadError identifies why a failed job failed.
type PayloadError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Dispatcher posts webhook notifications.
type Dispatcher struct {
	jobs    store.JobStore
	client  *http.Client
	log     *slog.Logger
	metrics *observe.Metrics

	retryDelay time.Duration
	attempts   int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the HTTP client (primarily for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithRetryDelay overrides the fixed delay between delivery attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.retryDelay = delay }
}

// WithAttempts overrides the delivery attempt cap.
func WithAttempts(n int) Option {
	return func(d *Dispatcher) { d.attempts = n }
}

// WithMetrics replaces the metrics instance (primarily for tests).
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(jobs store.JobStore, log *slog.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		jobs:       jobs,
		client:     &http.Client{Timeout: defaultTimeout},
		log:        log,
		metrics:    observe.DefaultMetrics(),
		retryDelay: defaultRetryDelay,
		attempts:   defaultAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver posts the job's completion payload and marks it delivered on
// success. Jobs without a webhook URL are a no-op.
func (d *Dispatcher) Deliver(ctx context.Context, job *store.Job) error {
	if job.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(payloadFor(job))
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retryDelay):
			}
		}

		lastErr = d.post(ctx, job.WebhookURL, body)
		if lastErr == nil {
			if err := d.jobs.MarkWebhookDelivered(ctx, job.ID); err != nil {
				return fmt.Errorf("webhook: mark delivered: %w", err)
			}
			d.metrics.RecordWebhookDelivery(ctx, "delivered")
			d.log.Info("webhook delivered",
				"job_id", job.ID, "url", job.WebhookURL, "attempt", attempt)
			return nil
		}
		d.log.Warn("webhook attempt failed",
			"job_id", job.ID, "attempt", attempt, "error", lastErr)
	}
	d.metrics.RecordWebhookDelivery(ctx, "failed")
	return fmt.Errorf("webhook: %d attempts failed for job %s: %w", d.attempts, job.ID, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "lexia-webhook/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func payloadFor(job *store.Job) Payload {
	p := Payload{
		Event:       "job." + string(job.Status),
		JobID:       job.ID,
		JobType:     job.Type,
		Status:      job.Status,
		CompletedAt: job.CompletedAt,
		ResultURL:   job.ResultURL,
	}
	if job.Status == store.StatusFailed {
		p.Error = &PayloadError{Code: job.ErrorCode, Message: job.ErrorMessage}
	}
	return p
}
