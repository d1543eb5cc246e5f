package app

import (
	"log/slog"

	"github.com/lexia-ai/lexia/internal/config"
	"github.com/lexia-ai/lexia/internal/resilience"
	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	diarmock "github.com/lexia-ai/lexia/pkg/backend/diarization/mock"
	"github.com/lexia-ai/lexia/pkg/backend/diarization/pyannote"
	"github.com/lexia-ai/lexia/pkg/backend/stt"
	sttmock "github.com/lexia-ai/lexia/pkg/backend/stt/mock"
	"github.com/lexia-ai/lexia/pkg/backend/stt/openai"
	"github.com/lexia-ai/lexia/pkg/backend/stt/whisper"
	"github.com/lexia-ai/lexia/pkg/blob"
	"github.com/lexia-ai/lexia/pkg/blob/fsblob"
	"github.com/lexia-ai/lexia/pkg/blob/httpblob"
	blobmock "github.com/lexia-ai/lexia/pkg/blob/mock"
)

// RegisterBuiltins wires every backend and blob-store implementation that
// ships with Lexia into reg. Both binaries call this before building their
// dependency graph.
func RegisterBuiltins(reg *config.Registry) {
	// ── STT ──
	reg.RegisterSTT("whisper", func(entry config.BackendEntry) (stt.Backend, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	})
	reg.RegisterSTT("whisper-native", func(entry config.BackendEntry) (stt.Backend, error) {
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(entry.Model, opts...)
	})
	reg.RegisterSTT("openai", func(entry config.BackendEntry) (stt.Backend, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterSTT("mock", func(config.BackendEntry) (stt.Backend, error) {
		return &sttmock.Backend{}, nil
	})

	// ── Diarization ──
	reg.RegisterDiarization("pyannote", func(entry config.BackendEntry) (diarization.Backend, error) {
		var opts []pyannote.Option
		if entry.Model != "" {
			opts = append(opts, pyannote.WithModel(entry.Model))
		}
		return pyannote.New(entry.BaseURL, opts...)
	})
	reg.RegisterDiarization("mock", func(config.BackendEntry) (diarization.Backend, error) {
		return &diarmock.Backend{}, nil
	})

	// ── Blob stores ──
	reg.RegisterBlob("fs", func(cfg config.BlobConfig) (blob.Store, error) {
		return fsblob.New(cfg.Root)
	})
	reg.RegisterBlob("http", func(cfg config.BlobConfig) (blob.Store, error) {
		return httpblob.New(cfg.BaseURL, cfg.Bucket, cfg.ServiceKey)
	})
	reg.RegisterBlob("mock", func(config.BlobConfig) (blob.Store, error) {
		return blobmock.New(), nil
	})
}

// NewSTTBackend creates the configured STT backend behind a circuit breaker,
// with optional failover per the config. Shared by the API and worker
// assemblies.
func NewSTTBackend(entry config.BackendEntry, reg *config.Registry, log *slog.Logger) (stt.Backend, error) {
	backend, err := reg.CreateSTT(entry)
	if err != nil {
		return nil, err
	}
	return wrapSTTFallback(backend, entry, reg, log), nil
}

// NewDiarizationBackend creates the configured diarization backend behind a
// circuit breaker, so a dead engine fails fast instead of stalling every job
// on its timeout. Shared by the API and worker assemblies.
func NewDiarizationBackend(entry config.BackendEntry, reg *config.Registry, log *slog.Logger) (diarization.Backend, error) {
	backend, err := reg.CreateDiarization(entry)
	if err != nil {
		return nil, err
	}
	return resilience.NewDiarizationFallback(backend, backend.Name(),
		breakerConfig(log, "diarization")), nil
}

// wrapSTTFallback puts a circuit breaker in front of the primary STT backend
// and, when the config names one, registers a failover engine behind it:
//
//	backends:
//	  stt:
//	    name: whisper
//	    base_url: http://whisper:9000
//	    options:
//	      fallback:
//	        name: openai
//	        api_key: sk-…
//	        model: whisper-1
func wrapSTTFallback(primary stt.Backend, entry config.BackendEntry, reg *config.Registry, log *slog.Logger) stt.Backend {
	group := resilience.NewSTTFallback(primary, primary.Name(), breakerConfig(log, "stt"))

	raw, ok := entry.Options["fallback"].(map[string]any)
	if !ok {
		return group
	}
	fbEntry := config.BackendEntry{
		Name:    optString(raw, "name"),
		BaseURL: optString(raw, "base_url"),
		Model:   optString(raw, "model"),
		APIKey:  optString(raw, "api_key"),
	}
	fallback, err := reg.CreateSTT(fbEntry)
	if err != nil {
		log.Warn("stt fallback not created, continuing without",
			"name", fbEntry.Name, "error", err)
		return group
	}

	group.AddFallback(fallback.Name(), fallback)
	log.Info("stt fallback enabled", "primary", primary.Name(), "fallback", fallback.Name())
	return group
}

// breakerConfig builds the breaker settings shared by both compute kinds,
// surfacing state transitions in the assembly's log.
func breakerConfig(log *slog.Logger, kind string) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Logger: log,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("backend breaker state changed",
					"kind", kind, "backend", name, "from", from, "to", to)
			},
		},
	}
}

// optString reads a string out of a backend's free-form options map.
func optString(opts map[string]any, key string) string {
	v, _ := opts[key].(string)
	return v
}
