// Package mock provides a test double for stt.Backend.
//
// Pre-populate Result (or Results for call-by-call scripting) with the
// values the consumer should receive, then inspect TranscribeCalls to verify
// what the worker sent.
package mock

import (
	"context"
	"sync"

	"github.com/lexia-ai/lexia/pkg/backend/stt"
)

// Ensure Backend implements stt.Backend at compile time.
var _ stt.Backend = (*Backend)(nil)

// Backend is a mock implementation of stt.Backend.
type Backend struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call when Results is empty.
	Result *stt.Result

	// Results, when non-empty, scripts successive Transcribe calls: call n
	// returns Results[n]. Calls beyond the last entry return the last entry.
	Results []*stt.Result

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// HealthErr, if non-nil, is returned by Health.
	HealthErr error

	// BackendName overrides the reported name. Defaults to "mock".
	BackendName string

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []stt.TranscribeRequest
}

// Transcribe records the call and returns the scripted result.
func (b *Backend) Transcribe(_ context.Context, req stt.TranscribeRequest) (*stt.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.TranscribeCalls)
	b.TranscribeCalls = append(b.TranscribeCalls, req)

	if b.TranscribeErr != nil {
		return nil, b.TranscribeErr
	}
	if len(b.Results) > 0 {
		if n >= len(b.Results) {
			n = len(b.Results) - 1
		}
		return b.Results[n], nil
	}
	if b.Result != nil {
		return b.Result, nil
	}
	return &stt.Result{}, nil
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
	b.TranscribeCalls = nil
}
