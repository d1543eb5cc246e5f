// Package mock provides an in-memory test double for blob.Store.
//
// Objects live in a map guarded by a mutex; every call is recorded so tests
// can assert on the exact sequence of store interactions.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lexia-ai/lexia/pkg/blob"
)

// Compile-time interface assertion.
var _ blob.Store = (*Store)(nil)

// PutCall records a single invocation of Store.Put.
type PutCall struct {
	Key         string
	ContentType string
	// Size is the number of bytes read from the upload reader.
	Size int64
}

// Store is an in-memory blob.Store.
type Store struct {
	mu sync.Mutex

	// objects maps key → stored bytes.
	objects map[string][]byte

	// PutErr / GetErr / DeleteErr, if non-nil, are returned by the
	// corresponding method before touching the object map.
	PutErr    error
	GetErr    error
	DeleteErr error

	// PutCalls, GetKeys and DeleteKeys record every call in order.
	PutCalls   []PutCall
	GetKeys    []string
	DeleteKeys []string
}

// New returns an empty Store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Seed stores data under key without recording a call. Use it to arrange
// test fixtures.
func (s *Store) Seed(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = bytes.Clone(data)
}

// Object returns the stored bytes for key and whether it exists.
func (s *Store) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return bytes.Clone(data), ok
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Put implements blob.Store.
func (s *Store) Put(_ context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("mock blob: read upload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls = append(s.PutCalls, PutCall{Key: key, ContentType: contentType, Size: int64(len(data))})
	if s.PutErr != nil {
		return s.PutErr
	}
	s.objects[key] = data
	return nil
}

// Get implements blob.Store.
func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetKeys = append(s.GetKeys, key)
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// Delete implements blob.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeleteKeys = append(s.DeleteKeys, key)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	delete(s.objects, key)
	return nil
}
