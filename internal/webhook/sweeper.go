package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/lexia-ai/lexia/internal/store"
)

// sweepBatch caps how many undelivered webhooks one sweep attempts.
const sweepBatch = 50

// Sweeper periodically re-drives undelivered webhooks.
type Sweeper struct {
	jobs       store.JobStore
	dispatcher *Dispatcher
	interval   time.Duration
	log        *slog.Logger
}

// NewSweeper creates a Sweeper that scans every interval.
func NewSweeper(jobs store.JobStore, d *Dispatcher, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{jobs: jobs, dispatcher: d, interval: interval, log: log}
}

// Run sweeps until the context is cancelled. It always returns ctx.Err().
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: list undelivered webhooks oldest first and
// attempt each. Failures are logged and left for the next pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	jobs, err := s.jobs.PendingWebhooks(ctx, sweepBatch)
	if err != nil {
		s.log.Error("webhook sweep: list pending", "error", err)
		return
	}
	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := s.dispatcher.Deliver(ctx, &jobs[i]); err != nil {
			s.log.Warn("webhook sweep: delivery failed",
				"job_id", jobs[i].ID, "error", err)
		}
	}
}
