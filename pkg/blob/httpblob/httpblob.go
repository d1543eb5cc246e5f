// Package httpblob provides a blob.Store backed by a bucket-scoped HTTP
// object store.
//
// The wire protocol is the plain REST shape shared by most hosted object
// stores:
//
//	POST   <base>/object/<bucket>/<key>   — upload (body = object bytes)
//	GET    <base>/object/<bucket>/<key>   — download
//	DELETE <base>/object/<bucket>/<key>   — delete
//
// All calls carry a bearer service key. Objects are opaque; the store never
// inspects audio content.
package httpblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lexia-ai/lexia/pkg/blob"
)

// Compile-time interface assertion.
var _ blob.Store = (*Store)(nil)

const defaultTimeout = 120 * time.Second

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithHTTPClient replaces the default HTTP client. Useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.httpClient = c }
}

// WithTimeout sets the per-call timeout. Defaults to 120s — uploads of
// long audio files over slow links need headroom.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.httpClient.Timeout = d }
}

// Store is a blob.Store talking to a remote object store over HTTP.
type Store struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

// New creates a Store for the object store at baseURL, scoped to bucket.
// serviceKey authenticates every call.
func New(baseURL, bucket, serviceKey string, opts ...Option) (*Store, error) {
	if baseURL == "" {
		return nil, errors.New("httpblob: baseURL must not be empty")
	}
	if bucket == "" {
		return nil, errors.New("httpblob: bucket must not be empty")
	}
	s := &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Put implements blob.Store.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(key), r)
	if err != nil {
		return fmt.Errorf("httpblob: create request: %w", err)
	}
	s.authorize(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpblob: put %q: %w", key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("httpblob: put %q: server returned HTTP %d", key, resp.StatusCode)
	}
	return nil
}

// Get implements blob.Store. The returned reader streams the object body;
// the caller must close it.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("httpblob: create request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpblob: get %q: %w", key, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("httpblob: get %q: server returned HTTP %d", key, resp.StatusCode)
	}
	return resp.Body, nil
}

// Delete implements blob.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("httpblob: create request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpblob: delete %q: %w", key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("httpblob: delete %q: server returned HTTP %d", key, resp.StatusCode)
	}
	return nil
}

func (s *Store) authorize(req *http.Request) {
	if s.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	}
}

// objectURL builds the object endpoint for key. Each path element of the key
// is escaped individually so slashes remain path separators.
func (s *Store) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/object/" + url.PathEscape(s.bucket) + "/" + strings.Join(parts, "/")
}
