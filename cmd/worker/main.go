package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/talevoice/backend/internal/config"
	"github.com/talevoice/backend/internal/notify"
	"github.com/talevoice/backend/internal/queue"
	"github.com/talevoice/backend/internal/queue/workers"
	"github.com/talevoice/backend/internal/synth"
	"github.com/talevoice/backend/internal/track"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	tracker := track.NewStore(rdb, time.Duration(cfg.Dispatch.RetentionHours)*time.Hour)
	notifier := notify.New(cfg.Notify.CallbackURL, cfg.Notify.Secret)
	if notifier != nil {
		defer notifier.Close()
	}

	synthClient := synth.NewClient(synth.ClientConfig{
		APIKey:           cfg.Synthesis.APIKey,
		RealtimeURL:      cfg.Synthesis.RealtimeURL,
		SpeechURL:        cfg.Synthesis.SpeechURL,
		SampleRate:       cfg.Synthesis.SampleRate,
		SessionTimeoutMs: cfg.Synthesis.SessionTimeoutMs,
	}, logger)

	lifecycle := workers.NewLifecycle(tracker, notifier, logger)
	voiceWorker := workers.NewVoiceWorker(synthClient, logger)

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeVoiceSynthesize, lifecycle.Wrap(voiceWorker.ProcessJob))

	pool := queue.NewWorkerPool(redisOpt, queue.PoolConfig{
		Concurrency: map[queue.QueueName]int{
			queue.QueueVoice:   cfg.Dispatch.VoiceConcurrency,
			queue.QueueDefault: 1,
		},
		RetryBase: time.Duration(cfg.Dispatch.RetryBaseMs) * time.Millisecond,
	}, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("shutting down workers...")
		pool.Shutdown()
	}()

	slog.Info("starting workers", "voice_concurrency", cfg.Dispatch.VoiceConcurrency)
	if err := pool.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
	slog.Info("workers stopped")
}
