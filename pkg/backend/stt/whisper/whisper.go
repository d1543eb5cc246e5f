// Package whisper provides Whisper-backed stt.Backend implementations.
//
// Two variants share this package:
//
//   - Backend (New): a client for a Whisper inference microservice exposing
//     POST /transcribe and GET /health. Transcription runs remotely; this
//     process only uploads the audio and decodes the JSON result.
//
//   - NativeBackend (NewNative): an in-process model via the whisper.cpp CGO
//     bindings. libwhisper.a and whisper.h must be available at link time via
//     LIBRARY_PATH and C_INCLUDE_PATH.
//
// Both variants are batch engines: one audio file in, one stt.Result out,
// times in float seconds.
package whisper

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

	"github.com/lexia-ai/lexia/pkg/backend/stt"
)

// Compile-time interface assertion.
var _ stt.Backend = (*Backend)(nil)

const (
	// defaultTimeout bounds one remote inference call. Transcription of long
	// recordings takes minutes, so the budget is generous.
	defaultTimeout = 300 * time.Second

	healthTimeout = 5 * time.Second

	transcribeEndpoint = "/transcribe"
	healthEndpoint     = "/health"
)

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithModel sets the model identifier forwarded to the inference service.
// When empty the service uses whichever model it was started with — this is
// the default.
func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

// WithTimeout overrides the per-call inference timeout. Defaults to 300s.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.httpClient.Timeout = d }
}

// WithHTTPClient replaces the default HTTP client. Useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// Backend implements stt.Backend against a remote Whisper service.
type Backend struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Backend that connects to the Whisper service at serverURL
// (e.g., "http://localhost:8002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Backend, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
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

// Name implements stt.Backend.
func (b *Backend) Name() string { return "whisper" }

// Transcribe implements stt.Backend. It uploads the audio file as
// multipart/form-data to POST /transcribe and decodes the service's JSON
// response into an stt.Result.
func (b *Backend) Transcribe(ctx context.Context, req stt.TranscribeRequest) (*stt.Result, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: open audio: %w", err)
	}
	defer f.Close()

	// Stream the multipart body through a pipe so large files are never
	// buffered fully in memory.
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
	if req.Language != "" {
		q.Set("language", req.Language)
	}
	q.Set("word_timestamps", strconv.FormatBool(req.WordTimestamps))
	if b.model != "" {
		q.Set("model", b.model)
	}
	endpoint := b.serverURL + transcribeEndpoint + "?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result stt.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("whisper: decode response: %w", err)
	}
	return &result, nil
}

// Health implements stt.Backend by probing GET /health.
func (b *Backend) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.serverURL+healthEndpoint, nil)
	if err != nil {
		return fmt.Errorf("whisper: create health request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: health check: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}
