// Package app wires the Lexia subsystems into running processes.
//
// [App] is the HTTP API server process: auth, rate limiting, submission,
// polling, and the metrics endpoint. It owns the full lifecycle: New
// connects everything, Run blocks until the context is cancelled, Shutdown
// tears down in reverse-init order. The worker process assembles its own,
// smaller dependency set in cmd/lexia-worker.
//
// For testing, inject doubles via functional options (WithStore, WithQueue,
// WithSTT, …). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lexia-ai/lexia/internal/api"
	"github.com/lexia-ai/lexia/internal/auth"
	"github.com/lexia-ai/lexia/internal/config"
	"github.com/lexia-ai/lexia/internal/dispatch"
	"github.com/lexia-ai/lexia/internal/health"
	"github.com/lexia-ai/lexia/internal/queue"
	"github.com/lexia-ai/lexia/internal/queue/redisqueue"
	"github.com/lexia-ai/lexia/internal/ratelimit"
	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/internal/store/postgres"
	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	"github.com/lexia-ai/lexia/pkg/backend/stt"
	"github.com/lexia-ai/lexia/pkg/blob"
)

// App is the assembled API server process.
type App struct {
	cfg *config.Config
	log *slog.Logger

	// Subsystems — initialised in New, torn down in Shutdown.
	store    store.Store
	redis    redis.UniversalClient
	queue    queue.Queue
	blobs    blob.Store
	stt      stt.Backend
	diarizer diarization.Backend

	server *http.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a persistence layer instead of connecting to PostgreSQL.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithRedis injects a Redis client instead of dialing config.Redis.Addr.
func WithRedis(c redis.UniversalClient) Option {
	return func(a *App) { a.redis = c }
}

// WithQueue injects a task queue instead of creating the Redis-backed one.
func WithQueue(q queue.Queue) Option {
	return func(a *App) { a.queue = q }
}

// WithBlobStore injects a blob store instead of creating one from config.
func WithBlobStore(b blob.Store) Option {
	return func(a *App) { a.blobs = b }
}

// WithSTT injects a speech-to-text backend.
func WithSTT(b stt.Backend) Option {
	return func(a *App) { a.stt = b }
}

// WithDiarizer injects a diarization backend.
func WithDiarizer(b diarization.Backend) Option {
	return func(a *App) { a.diarizer = b }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// New assembles the API server. The registry supplies backend and blob-store
// factories; main registers the built-ins via [RegisterBuiltins].
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}

	if err := a.initShared(ctx, reg); err != nil {
		return nil, err
	}

	authn := auth.New(a.store, cfg.Auth.TokenSalt, cfg.Auth.TokenPrefix, a.log)
	limiter := ratelimit.New(a.redis, a.log)
	dispatcher := dispatch.New(a.store, a.queue, a.log)

	readiness := health.New(
		health.Checker{Name: "database", Check: a.pingStore},
		health.Checker{Name: "redis", Check: a.pingRedis},
	)

	srv := api.New(api.Deps{
		Store:        a.store,
		Auth:         authn,
		Limiter:      limiter,
		Dispatcher:   dispatcher,
		Blobs:        a.blobs,
		STT:          a.stt,
		Diarizer:     a.diarizer,
		Health:       readiness,
		Log:          a.log,
		Version:      cfg.Server.Version,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxUploadMB:  cfg.Limits.MaxUploadMB,
		MaxSyncMB:    cfg.Limits.MaxSyncMB,
		DefaultQuota: cfg.Limits.DefaultQuota,
	})

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initShared connects the subsystems both process kinds need: persistence,
// Redis, the task queue, the blob store, and the compute backends.
func (a *App) initShared(ctx context.Context, reg *config.Registry) error {
	if a.store == nil {
		pg, err := postgres.New(ctx, a.cfg.Database.PostgresDSN)
		if err != nil {
			return fmt.Errorf("app: connect postgres: %w", err)
		}
		a.store = pg
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
	}

	if a.redis == nil {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("app: connect redis: %w", err)
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
	}

	if a.queue == nil {
		a.queue = redisqueue.New(a.redis, a.cfg.Redis.QueueName, a.log)
	}

	if a.blobs == nil {
		blobs, err := reg.CreateBlob(a.cfg.Blob)
		if err != nil {
			return fmt.Errorf("app: create blob store: %w", err)
		}
		a.blobs = blobs
	}

	if a.stt == nil {
		backend, err := NewSTTBackend(a.cfg.Backends.STT, reg, a.log)
		if err != nil {
			return fmt.Errorf("app: create stt backend: %w", err)
		}
		a.stt = backend
	}

	if a.diarizer == nil {
		backend, err := NewDiarizationBackend(a.cfg.Backends.Diarization, reg, a.log)
		if err != nil {
			return fmt.Errorf("app: create diarization backend: %w", err)
		}
		a.diarizer = backend
	}

	return nil
}

// pingStore adapts the optional Ping method for the readiness checker.
// Injected test stores without Ping always pass.
func (a *App) pingStore(ctx context.Context) error {
	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (a *App) pingRedis(ctx context.Context) error {
	return a.redis.Ping(ctx).Err()
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("api server listening", "addr", a.server.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(drainCtx); err != nil {
		a.log.Warn("http drain incomplete", "error", err)
	}
	return nil
}

// Shutdown tears down the subsystems in reverse-init order. It respects the
// context deadline: once ctx expires, remaining closers are skipped.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "error", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
