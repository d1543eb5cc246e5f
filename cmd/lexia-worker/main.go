// Command lexia-worker consumes transcription and diarization tasks from
// the Redis queue, runs them through the compute backends, persists results,
// and delivers webhooks. Run as many worker processes as the backends can
// sustain; each one additionally sweeps for undelivered webhooks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lexia-ai/lexia/internal/app"
	"github.com/lexia-ai/lexia/internal/config"
	"github.com/lexia-ai/lexia/internal/observe"
	"github.com/lexia-ai/lexia/internal/queue/redisqueue"
	"github.com/lexia-ai/lexia/internal/store/postgres"
	"github.com/lexia-ai/lexia/internal/webhook"
	"github.com/lexia-ai/lexia/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file (empty = environment only)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexia-worker: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lexia-worker starting",
		"concurrency", cfg.Worker.Concurrency,
		"queue", cfg.Redis.QueueName,
		"stt_backend", cfg.Backends.STT.Name,
		"diarization_backend", cfg.Backends.Diarization.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "lexia-worker",
		ServiceVersion: cfg.Server.Version,
	})
	if err != nil {
		slog.Error("telemetry init failed", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}()

	// ── Persistence ──
	st, err := postgres.New(ctx, cfg.Database.PostgresDSN)
	if err != nil {
		slog.Error("connect postgres failed", "error", err)
		return 1
	}
	defer st.Close()

	// ── Redis + queue ──
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("connect redis failed", "error", err)
		return 1
	}
	defer client.Close()
	tasks := redisqueue.New(client, cfg.Redis.QueueName, logger)

	// ── Blob store + compute backends ──
	reg := config.NewRegistry()
	app.RegisterBuiltins(reg)

	blobs, err := reg.CreateBlob(cfg.Blob)
	if err != nil {
		slog.Error("create blob store failed", "error", err)
		return 1
	}
	sttBackend, err := app.NewSTTBackend(cfg.Backends.STT, reg, logger)
	if err != nil {
		slog.Error("create stt backend failed", "error", err)
		return 1
	}
	diarizer, err := app.NewDiarizationBackend(cfg.Backends.Diarization, reg, logger)
	if err != nil {
		slog.Error("create diarization backend failed", "error", err)
		return 1
	}

	// ── Webhooks + pool ──
	webhooks := webhook.NewDispatcher(st, logger)
	sweeper := webhook.NewSweeper(st, webhooks,
		time.Duration(cfg.Worker.SweepIntervalSeconds)*time.Second, logger)

	pool := worker.New(st, tasks, blobs, sttBackend, diarizer, webhooks, logger,
		worker.WithConcurrency(cfg.Worker.Concurrency),
		worker.WithRetry(cfg.Worker.MaxAttempts,
			time.Duration(cfg.Worker.RetryDelaySeconds)*time.Second),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })

	slog.Info("worker ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker error", "error", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
