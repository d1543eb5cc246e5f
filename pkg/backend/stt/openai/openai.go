// Package openai provides an stt.Backend backed by the OpenAI audio
// transcription API.
//
// The backend requests verbose JSON output so that segment and word
// timestamps are available for speaker alignment. Word timing is only
// produced for models that support it (whisper-1); other models fall back to
// segment-level output and the alignment engine's proportional path.
package openai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/lexia-ai/lexia/pkg/backend/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = string(oai.AudioModelWhisper1)

// defaultTimeout bounds one transcription call end to end, including the
// audio upload.
const defaultTimeout = 300 * time.Second

// Ensure Backend implements the stt.Backend interface.
var _ stt.Backend = (*Backend)(nil)

// Backend implements stt.Backend using the OpenAI audio API.
type Backend struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the backend.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Backend.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to target
// an OpenAI-compatible transcription service.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 300s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI transcription backend. If model is empty,
// DefaultModel (whisper-1) is used.
func New(apiKey, model string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{timeout: defaultTimeout}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Backend{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name implements stt.Backend.
func (b *Backend) Name() string { return "openai" }

// verboseTranscription mirrors the verbose_json response shape of the audio
// transcription endpoint. The SDK's typed return value only carries the plain
// text, so the raw body is decoded into this struct instead.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		// AvgLogprob is e^x-convertible to a confidence proxy; the API does
		// not report per-segment confidence directly.
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// Transcribe implements stt.Backend.
func (b *Backend) Transcribe(ctx context.Context, req stt.TranscribeRequest) (*stt.Result, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("openai stt: open audio: %w", err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:           f,
		Model:          oai.AudioModel(b.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	if req.Language != "" {
		params.Language = param.NewOpt(req.Language)
	}
	if req.WordTimestamps {
		params.TimestampGranularities = []string{"word", "segment"}
	}

	var verbose verboseTranscription
	_, err = b.client.Audio.Transcriptions.New(ctx, params,
		option.WithResponseBodyInto(&verbose),
	)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}

	result := &stt.Result{
		Text:     verbose.Text,
		Language: verbose.Language,
		Duration: verbose.Duration,
	}
	if verbose.Language != "" {
		result.LanguageConfidence = 1.0
	}
	for _, s := range verbose.Segments {
		result.Segments = append(result.Segments, stt.Segment{
			ID:         s.ID,
			Text:       s.Text,
			Start:      s.Start,
			End:        s.End,
			Confidence: logprobToConfidence(s.AvgLogprob),
		})
	}
	for _, w := range verbose.Words {
		result.Words = append(result.Words, stt.Word{
			Text:       w.Word,
			Start:      w.Start,
			End:        w.End,
			Confidence: 1.0,
		})
	}
	return result, nil
}

// Health implements stt.Backend by listing models, the cheapest authenticated
// round-trip the API offers.
func (b *Backend) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := b.client.Models.Get(ctx, b.model); err != nil {
		return fmt.Errorf("openai stt: health check: %w", err)
	}
	return nil
}

// logprobToConfidence maps an average token log-probability to a (0, 1]
// confidence value. Zero logprob (perfect certainty) maps to 1.0.
func logprobToConfidence(avgLogprob float64) float64 {
	if avgLogprob >= 0 {
		return 1.0
	}
	// e^logprob is the geometric-mean token probability.
	return math.Exp(avgLogprob)
}
