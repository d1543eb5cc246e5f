package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known backend names per backend kind.
// Used by [Validate] to warn about unrecognised backend names.
var ValidBackendNames = map[string][]string{
	"stt":         {"whisper", "whisper-native", "openai", "mock"},
	"diarization": {"pyannote", "mock"},
	"blob":        {"http", "fs", "mock"},
}

// Load reads the YAML configuration file at path, overlays LEXIA_*
// environment variables, and returns a validated [Config]. It is a
// convenience wrapper around [LoadFromReader], [ApplyEnv], and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// FromEnv builds a Config purely from LEXIA_* environment variables and
// defaults. Used when no config file is given.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	ApplyEnv(cfg)
	cfg.Defaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, overlays environment
// variables, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	cfg.Defaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays LEXIA_* environment variables onto cfg. Set variables
// always win over file values so that deployments can override any knob
// without editing the config file.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Server.ListenAddr, "LEXIA_LISTEN_ADDR")
	if v := os.Getenv("LEXIA_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	setString(&cfg.Server.Version, "LEXIA_VERSION")
	if v := os.Getenv("LEXIA_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitAndTrim(v)
	}

	setString(&cfg.Auth.TokenSalt, "LEXIA_TOKEN_SALT")
	setString(&cfg.Auth.TokenPrefix, "LEXIA_TOKEN_PREFIX")

	setString(&cfg.Database.PostgresDSN, "LEXIA_POSTGRES_DSN")

	setString(&cfg.Redis.Addr, "LEXIA_REDIS_ADDR")
	setString(&cfg.Redis.Password, "LEXIA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LEXIA_REDIS_DB")
	setString(&cfg.Redis.QueueName, "LEXIA_QUEUE_NAME")

	setString(&cfg.Blob.Backend, "LEXIA_BLOB_BACKEND")
	setString(&cfg.Blob.BaseURL, "LEXIA_BLOB_BASE_URL")
	setString(&cfg.Blob.Bucket, "LEXIA_BLOB_BUCKET")
	setString(&cfg.Blob.ServiceKey, "LEXIA_BLOB_SERVICE_KEY")
	setString(&cfg.Blob.Root, "LEXIA_BLOB_ROOT")

	setString(&cfg.Backends.STT.Name, "LEXIA_STT_BACKEND")
	setString(&cfg.Backends.STT.BaseURL, "LEXIA_STT_URL")
	setString(&cfg.Backends.STT.Model, "LEXIA_STT_MODEL")
	setString(&cfg.Backends.STT.APIKey, "LEXIA_STT_API_KEY")
	setString(&cfg.Backends.Diarization.Name, "LEXIA_DIARIZATION_BACKEND")
	setString(&cfg.Backends.Diarization.BaseURL, "LEXIA_DIARIZATION_URL")
	setString(&cfg.Backends.Diarization.Model, "LEXIA_DIARIZATION_MODEL")

	setInt(&cfg.Worker.Concurrency, "LEXIA_WORKER_CONCURRENCY")
	setInt(&cfg.Worker.MaxAttempts, "LEXIA_WORKER_MAX_ATTEMPTS")
	setInt(&cfg.Worker.RetryDelaySeconds, "LEXIA_WORKER_RETRY_DELAY_SECONDS")
	setInt(&cfg.Worker.SweepIntervalSeconds, "LEXIA_WEBHOOK_SWEEP_INTERVAL_SECONDS")

	setInt(&cfg.Limits.MaxUploadMB, "LEXIA_MAX_UPLOAD_MB")
	setInt(&cfg.Limits.MaxSyncMB, "LEXIA_MAX_SYNC_MB")
	setInt(&cfg.Limits.DefaultQuota, "LEXIA_DEFAULT_QUOTA")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Auth
	if cfg.Auth.TokenSalt == "" {
		errs = append(errs, errors.New("auth.token_salt is required (set LEXIA_TOKEN_SALT)"))
	}

	// Database
	if cfg.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgres_dsn is required (set LEXIA_POSTGRES_DSN)"))
	}

	// Backend name validation — warn for unknown backend names.
	validateBackendName("stt", cfg.Backends.STT.Name)
	validateBackendName("diarization", cfg.Backends.Diarization.Name)
	validateBackendName("blob", cfg.Blob.Backend)

	// Backend availability warnings
	if cfg.Backends.STT.Name == "" {
		slog.Warn("backends.stt is not configured; transcription jobs will fail in the worker")
	}
	if cfg.Backends.Diarization.Name == "" {
		slog.Warn("backends.diarization is not configured; diarization jobs will fail in the worker")
	}

	// Blob backend cross-validation
	switch cfg.Blob.Backend {
	case "http":
		if cfg.Blob.BaseURL == "" {
			errs = append(errs, errors.New("blob.base_url is required when blob.backend is http"))
		}
		if cfg.Blob.Bucket == "" {
			errs = append(errs, errors.New("blob.bucket is required when blob.backend is http"))
		}
	case "fs":
		if cfg.Blob.Root == "" {
			errs = append(errs, errors.New("blob.root is required when blob.backend is fs"))
		}
	}

	// Limits
	if cfg.Limits.MaxSyncMB > cfg.Limits.MaxUploadMB {
		slog.Warn("limits.max_sync_mb exceeds limits.max_upload_mb",
			"max_sync_mb", cfg.Limits.MaxSyncMB,
			"max_upload_mb", cfg.Limits.MaxUploadMB,
		)
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is non-empty and not found in
// the [ValidBackendNames] list for the given kind.
func validateBackendName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidBackendNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name — may be a typo or third-party backend",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// ── Env helpers ───────────────────────────────────────────────────────────────

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-integer environment value", "key", key, "value", v)
		return
	}
	*dst = n
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
