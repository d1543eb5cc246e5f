// Package memstore provides an in-memory store.Store implementation.
//
// It backs handler and worker tests and the zero-dependency dev mode. All
// state lives in maps guarded by one RWMutex; methods copy rows on the way
// in and out so callers can never mutate shared state through aliasing.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lexia-ai/lexia/internal/store"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Store is an in-memory store.Store.
type Store struct {
	mu             sync.RWMutex
	credentials    map[string]*store.Credential
	jobs           map[string]*store.Job
	transcriptions map[string]*store.Transcription
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		credentials:    make(map[string]*store.Credential),
		jobs:           make(map[string]*store.Job),
		transcriptions: make(map[string]*store.Transcription),
	}
}

// ── CredentialStore ───────────────────────────────────────────────────────────

// CreateCredential implements store.CredentialStore.
func (s *Store) CreateCredential(_ context.Context, c *store.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[c.ID]; exists {
		return fmt.Errorf("memstore: credential %q already exists", c.ID)
	}
	cp := *c
	s.credentials[c.ID] = &cp
	return nil
}

// CredentialByHash implements store.CredentialStore.
func (s *Store) CredentialByHash(_ context.Context, keyHash string) (*store.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.credentials {
		if c.KeyHash == keyHash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// CredentialByID implements store.CredentialStore.
func (s *Store) CredentialByID(_ context.Context, id string) (*store.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListCredentials implements store.CredentialStore.
func (s *Store) ListCredentials(_ context.Context, principal string, includeRevoked bool) ([]store.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Credential
	for _, c := range s.credentials {
		if c.Principal != principal {
			continue
		}
		if c.Revoked && !includeRevoked {
			continue
		}
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b store.Credential) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// RevokeCredential implements store.CredentialStore.
func (s *Store) RevokeCredential(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if c.Revoked {
		return false, nil
	}
	c.Revoked = true
	return true, nil
}

// DeleteCredential implements store.CredentialStore.
func (s *Store) DeleteCredential(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.credentials, id)
	return nil
}

// TouchCredential implements store.CredentialStore.
func (s *Store) TouchCredential(_ context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.credentials[id]
	if !ok {
		return store.ErrNotFound
	}
	c.LastUsedAt = &t
	return nil
}

// ── JobStore ──────────────────────────────────────────────────────────────────

// CreateJob implements store.JobStore.
func (s *Store) CreateJob(_ context.Context, j *store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertJobLocked(j)
}

// CreateJobWithTranscription implements store.JobStore.
func (s *Store) CreateJobWithTranscription(_ context.Context, j *store.Job, t *store.Transcription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertJobLocked(j); err != nil {
		return err
	}
	tp := *t
	s.transcriptions[t.ID] = &tp
	return nil
}

func (s *Store) insertJobLocked(j *store.Job) error {
	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("memstore: job %q already exists", j.ID)
	}
	jp := *j
	s.jobs[j.ID] = &jp
	return nil
}

// Job implements store.JobStore.
func (s *Store) Job(_ context.Context, id string) (*store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	jp := *j
	return &jp, nil
}

// ListJobs implements store.JobStore.
func (s *Store) ListJobs(_ context.Context, f store.JobFilter) ([]store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Job
	for _, j := range s.jobs {
		if j.Principal != f.Principal {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Type != "" && j.Type != f.Type {
			continue
		}
		out = append(out, *j)
	}
	slices.SortFunc(out, func(a, b store.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []store.Job{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// SetQueueHandle implements store.JobStore.
func (s *Store) SetQueueHandle(_ context.Context, id, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status != store.StatusPending {
		return store.ErrConflict
	}
	j.QueueHandle = handle
	j.Status = store.StatusQueued
	return nil
}

// MarkProcessing implements store.JobStore.
func (s *Store) MarkProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status != store.StatusQueued {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	j.Status = store.StatusProcessing
	j.StartedAt = &now
	return nil
}

// UpdateProgress implements store.JobStore. Progress never regresses.
func (s *Store) UpdateProgress(_ context.Context, id string, percent int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if percent > j.ProgressPercent {
		j.ProgressPercent = percent
		j.ProgressMessage = message
	}
	return nil
}

// SetResult implements store.JobStore.
func (s *Store) SetResult(_ context.Context, id string, result json.RawMessage, resultURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status != store.StatusProcessing {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	j.Status = store.StatusCompleted
	j.Result = slices.Clone(result)
	j.ResultURL = resultURL
	j.ProgressPercent = 100
	j.ProgressMessage = "Completed"
	j.CompletedAt = &now
	return nil
}

// MarkFailed implements store.JobStore.
func (s *Store) MarkFailed(_ context.Context, id, code, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status.Terminal() {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	j.Status = store.StatusFailed
	j.ErrorCode = code
	j.ErrorMessage = message
	j.CompletedAt = &now
	return nil
}

// CancelJob implements store.JobStore.
func (s *Store) CancelJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status != store.StatusPending && j.Status != store.StatusQueued {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	j.Status = store.StatusCancelled
	j.CompletedAt = &now
	return nil
}

// PendingWebhooks implements store.JobStore.
func (s *Store) PendingWebhooks(_ context.Context, limit int) ([]store.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Job
	for _, j := range s.jobs {
		if j.WebhookURL == "" || j.WebhookDelivered || !j.Status.Terminal() {
			continue
		}
		out = append(out, *j)
	}
	slices.SortFunc(out, func(a, b store.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkWebhookDelivered implements store.JobStore.
func (s *Store) MarkWebhookDelivered(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.WebhookDelivered = true
	return nil
}

// ── TranscriptionStore ────────────────────────────────────────────────────────

// Transcription implements store.TranscriptionStore.
func (s *Store) Transcription(_ context.Context, id string) (*store.Transcription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transcriptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tp := *t
	return &tp, nil
}

// TranscriptionByJobID implements store.TranscriptionStore.
func (s *Store) TranscriptionByJobID(_ context.Context, jobID string) (*store.Transcription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transcriptions {
		if t.JobID == jobID {
			tp := *t
			return &tp, nil
		}
	}
	return nil, store.ErrNotFound
}

// SetTranscriptionResult implements store.TranscriptionStore.
func (s *Store) SetTranscriptionResult(_ context.Context, id string, r *store.TranscriptionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transcriptions[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	t.Text = r.Text
	t.Words = slices.Clone(r.Words)
	t.Segments = slices.Clone(r.Segments)
	t.DetectedLanguage = r.DetectedLanguage
	t.LanguageConfidence = r.LanguageConfidence
	t.Confidence = r.Confidence
	t.CompletedAt = &now
	return nil
}

// SetDiarizationResult implements store.TranscriptionStore.
func (s *Store) SetDiarizationResult(_ context.Context, id string, r *store.DiarizationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transcriptions[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Speakers = slices.Clone(r.Speakers)
	t.Utterances = slices.Clone(r.Utterances)
	t.DiarizationSegments = slices.Clone(r.DiarizationSegments)
	t.DiarizationStats = r.DiarizationStats
	return nil
}

// DeleteTranscription implements store.TranscriptionStore.
func (s *Store) DeleteTranscription(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcriptions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.transcriptions, id)
	return nil
}
