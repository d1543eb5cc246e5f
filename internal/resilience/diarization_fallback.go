package resilience

import (
	"context"

	"github.com/lexia-ai/lexia/pkg/backend/diarization"
)

// DiarizationFallback implements [diarization.Backend] behind a per-entry
// circuit breaker, with optional failover across multiple diarization
// engines. Even with a single entry the breaker makes a dead engine fail
// fast instead of stalling every job on its timeout.
type DiarizationFallback struct {
	group *FallbackGroup[diarization.Backend]
}

// Compile-time interface assertion.
var _ diarization.Backend = (*DiarizationFallback)(nil)

// NewDiarizationFallback creates a [DiarizationFallback] with primary as the
// preferred backend.
func NewDiarizationFallback(primary diarization.Backend, primaryName string, cfg FallbackConfig) *DiarizationFallback {
	return &DiarizationFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional diarization backend as a fallback.
func (f *DiarizationFallback) AddFallback(name string, backend diarization.Backend) {
	f.group.AddFallback(name, backend)
}

// Diarize runs the request against the first healthy backend.
func (f *DiarizationFallback) Diarize(ctx context.Context, req diarization.DiarizeRequest) (*diarization.Result, error) {
	return ExecuteWithResult(f.group, func(b diarization.Backend) (*diarization.Result, error) {
		return b.Diarize(ctx, req)
	})
}

// Health probes the group; it is healthy as long as any member answers.
func (f *DiarizationFallback) Health(ctx context.Context) error {
	return f.group.Execute(func(b diarization.Backend) error {
		return b.Health(ctx)
	})
}

// Name reports the primary backend's name.
func (f *DiarizationFallback) Name() string {
	return f.group.PrimaryName()
}
