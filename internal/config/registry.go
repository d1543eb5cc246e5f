package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	"github.com/lexia-ai/lexia/pkg/backend/stt"
	"github.com/lexia-ai/lexia/pkg/blob"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions for each
// backend kind. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	stt         map[string]func(BackendEntry) (stt.Backend, error)
	diarization map[string]func(BackendEntry) (diarization.Backend, error)
	blob        map[string]func(BlobConfig) (blob.Store, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:         make(map[string]func(BackendEntry) (stt.Backend, error)),
		diarization: make(map[string]func(BackendEntry) (diarization.Backend, error)),
		blob:        make(map[string]func(BlobConfig) (blob.Store, error)),
	}
}

// RegisterSTT registers an STT backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(BackendEntry) (stt.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterDiarization registers a diarization backend factory under name.
func (r *Registry) RegisterDiarization(name string, factory func(BackendEntry) (diarization.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diarization[name] = factory
}

// RegisterBlob registers a blob store factory under name.
func (r *Registry) RegisterBlob(name string, factory func(BlobConfig) (blob.Store, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blob[name] = factory
}

// CreateSTT instantiates an STT backend using the factory registered under
// entry.Name. Returns [ErrBackendNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(entry BackendEntry) (stt.Backend, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrBackendNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateDiarization instantiates a diarization backend using the factory
// registered under entry.Name.
func (r *Registry) CreateDiarization(entry BackendEntry) (diarization.Backend, error) {
	r.mu.RLock()
	factory, ok := r.diarization[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: diarization/%q", ErrBackendNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateBlob instantiates a blob store using the factory registered under
// cfg.Backend.
func (r *Registry) CreateBlob(cfg BlobConfig) (blob.Store, error) {
	r.mu.RLock()
	factory, ok := r.blob[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: blob/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}
