// Package pyannote provides a diarization.Backend backed by a pyannote
// inference microservice.
//
// The service exposes POST /diarize (multipart audio upload with speaker
// hints as query parameters) and GET /health. Diarization of long recordings
// can take many minutes on CPU, so the per-call timeout is large.
package pyannote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lexia-ai/lexia/pkg/backend/diarization"
)

// Compile-time interface assertion.
var _ diarization.Backend = (*Backend)(nil)

const (
	defaultTimeout = 600 * time.Second
	healthTimeout  = 5 * time.Second

	diarizeEndpoint = "/diarize"
	healthEndpoint  = "/health"
)

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithModel sets the model identifier forwarded to the service. When empty
// the service uses whichever model it was started with.
func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

// WithTimeout overrides the per-call timeout. Defaults to 600s.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.httpClient.Timeout = d }
}

// WithHTTPClient replaces the default HTTP client. Useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// Backend implements diarization.Backend against a remote pyannote service.
type Backend struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Backend that connects to the pyannote service at serverURL.
// serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Backend, error) {
	if serverURL == "" {
		return nil, errors.New("pyannote: serverURL must not be empty")
	}
	b := &Backend{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Name implements diarization.Backend.
func (b *Backend) Name() string { return "pyannote" }

// Diarize implements diarization.Backend.
func (b *Backend) Diarize(ctx context.Context, req diarization.DiarizeRequest) (*diarization.Result, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("pyannote: open audio: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("audio", filepath.Base(req.AudioPath))
		if err == nil {
			_, err = io.Copy(fw, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	q := url.Values{}
	if req.NumSpeakers > 0 {
		q.Set("num_speakers", strconv.Itoa(req.NumSpeakers))
	}
	if req.MinSpeakers > 0 {
		q.Set("min_speakers", strconv.Itoa(req.MinSpeakers))
	}
	if req.MaxSpeakers > 0 {
		q.Set("max_speakers", strconv.Itoa(req.MaxSpeakers))
	}
	if req.MinSegmentSec > 0 {
		q.Set("min_segment_duration", strconv.FormatFloat(req.MinSegmentSec, 'f', -1, 64))
	}
	if req.MergeGapsSec > 0 {
		q.Set("merge_gaps", strconv.FormatFloat(req.MergeGapsSec, 'f', -1, 64))
	}
	endpoint := b.serverURL + diarizeEndpoint
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("pyannote: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pyannote: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pyannote: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result diarization.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("pyannote: decode response: %w", err)
	}
	if result.Model == "" {
		result.Model = b.model
	}
	return &result, nil
}

// Health implements diarization.Backend by probing GET /health.
func (b *Backend) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.serverURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("pyannote: create health request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pyannote: health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pyannote: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}
