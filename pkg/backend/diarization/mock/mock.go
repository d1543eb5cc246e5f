// Package mock provides a test double for diarization.Backend.
package mock

import (
	"context"
	"sync"

	"github.com/lexia-ai/lexia/pkg/backend/diarization"
)

// Ensure Backend implements diarization.Backend at compile time.
var _ diarization.Backend = (*Backend)(nil)

// Backend is a mock implementation of diarization.Backend.
type Backend struct {
	mu sync.Mutex

	// Result is returned by every Diarize call. When nil, an empty result is
	// returned.
	Result *diarization.Result

	// DiarizeErr, if non-nil, is returned by every Diarize call.
	DiarizeErr error

	// HealthErr, if non-nil, is returned by Health.
	HealthErr error

	// BackendName overrides the reported name. Defaults to "mock".
	BackendName string

	// DiarizeCalls records every call to Diarize in order.
	DiarizeCalls []diarization.DiarizeRequest
}

// Diarize records the call and returns Result, DiarizeErr.
func (b *Backend) Diarize(_ context.Context, req diarization.DiarizeRequest) (*diarization.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DiarizeCalls = append(b.DiarizeCalls, req)
	if b.DiarizeErr != nil {
		return nil, b.DiarizeErr
	}
	if b.Result != nil {
		return b.Result, nil
	}
	return &diarization.Result{}, nil
}

// Health returns HealthErr.
func (b *Backend) Health(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.HealthErr
}

// Name returns BackendName, or "mock" when unset.
func (b *Backend) Name() string {
	if b.BackendName != "" {
		return b.BackendName
	}
	return "mock"
}

// Reset clears all recorded calls. Thread-safe.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DiarizeCalls = nil
}
