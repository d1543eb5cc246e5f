// Package observe provides application-wide observability primitives for
// Lexia: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lexia metrics.
const meterName = "github.com/lexia-ai/lexia"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// DiarizationDuration tracks speaker-diarization latency.
	DiarizationDuration metric.Float64Histogram

	// JobDuration tracks end-to-end job processing time from claim to
	// terminal state.
	JobDuration metric.Float64Histogram

	// QueueWait tracks how long tasks sat queued before a worker claimed
	// them.
	QueueWait metric.Float64Histogram

	// --- Counters ---

	// JobsProcessed counts finished jobs. Use with attributes:
	//   attribute.String("job_type", ...), attribute.String("status", ...)
	JobsProcessed metric.Int64Counter

	// WebhookDeliveries counts webhook delivery outcomes. Use with attribute:
	//   attribute.String("status", "delivered"|"failed")
	WebhookDeliveries metric.Int64Counter

	// RateLimitRejections counts requests refused by the rate limiter.
	RateLimitRejections metric.Int64Counter

	// BackendErrors counts compute-backend failures. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("kind", "stt"|"diarization")
	BackendErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveJobs tracks the number of jobs currently in processing.
	ActiveJobs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Audio
// jobs run from sub-second health probes to multi-minute transcriptions.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("lexia.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DiarizationDuration, err = m.Float64Histogram("lexia.diarization.duration",
		metric.WithDescription("Latency of speaker diarization."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JobDuration, err = m.Float64Histogram("lexia.job.duration",
		metric.WithDescription("End-to-end job processing time by job type and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueueWait, err = m.Float64Histogram("lexia.queue.wait",
		metric.WithDescription("Time tasks spent queued before a worker claimed them."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.JobsProcessed, err = m.Int64Counter("lexia.jobs.processed",
		metric.WithDescription("Total finished jobs by job type and terminal status."),
	); err != nil {
		return nil, err
	}
	if met.WebhookDeliveries, err = m.Int64Counter("lexia.webhook.deliveries",
		metric.WithDescription("Total webhook delivery outcomes by status."),
	); err != nil {
		return nil, err
	}
	if met.RateLimitRejections, err = m.Int64Counter("lexia.ratelimit.rejections",
		metric.WithDescription("Total requests refused by the rate limiter."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("lexia.backend.errors",
		metric.WithDescription("Total compute-backend failures by backend and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveJobs, err = m.Int64UpDownCounter("lexia.active_jobs",
		metric.WithDescription("Number of jobs currently in processing."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lexia.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordJobProcessed is a convenience method that records one finished job
// with the standard attribute set.
func (m *Metrics) RecordJobProcessed(ctx context.Context, jobType, status string) {
	m.JobsProcessed.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("job_type", jobType),
			attribute.String("status", status),
		),
	)
}

// RecordWebhookDelivery is a convenience method that records one webhook
// delivery outcome.
func (m *Metrics) RecordWebhookDelivery(ctx context.Context, status string) {
	m.WebhookDeliveries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordJobDuration records one job's claim-to-terminal latency.
func (m *Metrics) RecordJobDuration(ctx context.Context, jobType, status string, d time.Duration) {
	m.JobDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("job_type", jobType),
			attribute.String("status", status),
		),
	)
}

// RecordQueueWait records how long a task sat queued before a worker
// claimed it.
func (m *Metrics) RecordQueueWait(ctx context.Context, jobType string, d time.Duration) {
	m.QueueWait.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("job_type", jobType)),
	)
}

// RecordSTTDuration records one transcription call's latency by backend.
func (m *Metrics) RecordSTTDuration(ctx context.Context, backend string, d time.Duration) {
	m.STTDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// RecordDiarizationDuration records one diarization call's latency by
// backend.
func (m *Metrics) RecordDiarizationDuration(ctx context.Context, backend string, d time.Duration) {
	m.DiarizationDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// JobStarted and JobFinished move the active-jobs gauge; every JobStarted
// is paired with exactly one JobFinished when the job reaches a terminal
// state.
func (m *Metrics) JobStarted(ctx context.Context)  { m.ActiveJobs.Add(ctx, 1) }
func (m *Metrics) JobFinished(ctx context.Context) { m.ActiveJobs.Add(ctx, -1) }

// RecordBackendError is a convenience method that records one compute-backend
// failure.
func (m *Metrics) RecordBackendError(ctx context.Context, backend, kind string) {
	m.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("kind", kind),
		),
	)
}

// RecordRateLimitRejection is a convenience method that records one rejected
// request.
func (m *Metrics) RecordRateLimitRejection(ctx context.Context, credentialID string) {
	m.RateLimitRejections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("credential_id", credentialID)),
	)
}
