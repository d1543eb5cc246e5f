//go:build cgo

// This file contains the NativeBackend implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/lexia-ai/lexia/pkg/backend/stt"
)

// Compile-time assertion that NativeBackend satisfies stt.Backend.
var _ stt.Backend = (*NativeBackend)(nil)

// NativeBackend implements stt.Backend using whisper.cpp Go bindings (CGO),
// eliminating service round-trips entirely. The model is loaded once at
// startup and shared across all worker goroutines; each Transcribe call
// creates its own whisper context, which is the binding's unit of
// thread-safety.
type NativeBackend struct {
	model    whisperlib.Model
	language string

	// inferMu serialises inference. whisper.cpp contexts are cheap but the
	// model's compute is not; running one inference at a time per process
	// keeps memory bounded.
	inferMu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeBackend.
type NativeOption func(*NativeBackend)

// WithNativeLanguage sets the default language code used when a request does
// not specify one. Empty means auto-detect.
func WithNativeLanguage(lang string) NativeOption {
	return func(b *NativeBackend) { b.language = lang }
}

// NewNative creates a NativeBackend that loads the whisper.cpp model from
// the given file path. The caller must call Close when the backend is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeBackend, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	b := &NativeBackend{model: model}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Close releases the whisper model.
func (b *NativeBackend) Close() error {
	if b.model != nil {
		return b.model.Close()
	}
	return nil
}

// Name implements stt.Backend.
func (b *NativeBackend) Name() string { return "whisper-native" }

// Health implements stt.Backend. A loaded model is a healthy model; there is
// no remote service to probe.
func (b *NativeBackend) Health(_ context.Context) error {
	if b.model == nil {
		return errors.New("whisper: model not loaded")
	}
	return nil
}

// Transcribe implements stt.Backend. The audio file must be a 16-bit PCM WAV;
// it is decoded to the float32 mono samples whisper.cpp expects.
func (b *NativeBackend) Transcribe(ctx context.Context, req stt.TranscribeRequest) (*stt.Result, error) {
	samples, duration, err := loadWAVSamples(req.AudioPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.inferMu.Lock()
	defer b.inferMu.Unlock()

	wctx, err := b.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = b.language
	}
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using model default",
			"language", lang, "err", err)
	}
	wctx.SetTokenTimestamps(req.WordTimestamps)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	result := &stt.Result{
		Language: wctx.DetectedLanguage(),
		Duration: duration,
	}
	if result.Language == "" {
		result.Language = lang
	} else {
		result.LanguageConfidence = 1.0
	}

	var (
		parts         []string
		confidenceSum float64
		segmentCount  int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}

		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)

		seg := stt.Segment{
			ID:    segmentCount,
			Text:  text,
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
		}

		if req.WordTimestamps {
			for _, tok := range segment.Tokens {
				word := strings.TrimSpace(tok.Text)
				if word == "" || strings.HasPrefix(word, "[_") {
					continue
				}
				w := stt.Word{
					Text:       word,
					Start:      tok.Start.Seconds(),
					End:        tok.End.Seconds(),
					Confidence: float64(tok.P),
				}
				seg.Words = append(seg.Words, w)
				result.Words = append(result.Words, w)
				confidenceSum += w.Confidence
			}
		}

		result.Segments = append(result.Segments, seg)
		segmentCount++
	}

	result.Text = strings.Join(parts, " ")
	if n := len(result.Segments); n > 0 && confidenceSum > 0 {
		avg := confidenceSum / float64(len(result.Words))
		for i := range result.Segments {
			if result.Segments[i].Confidence == 0 {
				result.Segments[i].Confidence = avg
			}
		}
	}
	return result, nil
}
