package resilience

import (
	"context"

	"github.com/lexia-ai/lexia/pkg/backend/stt"
)

// STTFallback implements [stt.Backend] with automatic failover across
// multiple transcription backends. Each backend has its own circuit breaker,
// so a failing engine is bypassed in favour of healthy fallbacks (e.g., a
// self-hosted Whisper service falling back to the OpenAI audio API).
type STTFallback struct {
	group *FallbackGroup[stt.Backend]
}

// Compile-time interface assertion.
var _ stt.Backend = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Backend, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT backend as a fallback.
func (f *STTFallback) AddFallback(name string, backend stt.Backend) {
	f.group.AddFallback(name, backend)
}

// Transcribe runs the request against the first healthy backend. If the
// primary fails (or its breaker is open), fallbacks are tried in
// registration order.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.TranscribeRequest) (*stt.Result, error) {
	return ExecuteWithResult(f.group, func(b stt.Backend) (*stt.Result, error) {
		return b.Transcribe(ctx, req)
	})
}

// Health probes the group; it is healthy as long as any member answers.
func (f *STTFallback) Health(ctx context.Context) error {
	return f.group.Execute(func(b stt.Backend) error {
		return b.Health(ctx)
	})
}

// Name reports the primary backend's name.
func (f *STTFallback) Name() string {
	return f.group.PrimaryName()
}
