package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// PoolConfig sizes the per-queue worker pools.
type PoolConfig struct {
	// Concurrency bounds in-flight jobs independently per queue.
	Concurrency map[QueueName]int
	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
}

// WorkerPool runs one bounded asynq server per queue so each queue
// enforces its own concurrency limit rather than sharing one global
// bound.
type WorkerPool struct {
	servers map[QueueName]*asynq.Server
	logger  *slog.Logger
}

// NewWorkerPool builds the per-queue servers on a shared broker
// connection. Queues with a zero or negative bound are skipped.
func NewWorkerPool(redisOpt asynq.RedisClientOpt, cfg PoolConfig, logger *slog.Logger) *WorkerPool {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	servers := make(map[QueueName]*asynq.Server, len(cfg.Concurrency))
	for queueName, concurrency := range cfg.Concurrency {
		if concurrency <= 0 {
			continue
		}
		servers[queueName] = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency:    concurrency,
			Queues:         map[string]int{string(queueName): 1},
			RetryDelayFunc: exponentialBackoff(cfg.RetryBase),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				id, _ := asynq.GetTaskID(ctx)
				retried, _ := asynq.GetRetryCount(ctx)
				logger.Error("job attempt failed",
					"job_id", id, "type", task.Type(), "retried", retried, "error", err)
			}),
		})
	}

	return &WorkerPool{servers: servers, logger: logger}
}

// Run starts every queue's server against the given handler mux and
// blocks until the first server exits.
func (p *WorkerPool) Run(mux *asynq.ServeMux) error {
	if len(p.servers) == 0 {
		return fmt.Errorf("no queues configured")
	}

	errs := make(chan error, len(p.servers))
	for queueName, srv := range p.servers {
		p.logger.Info("starting queue workers", "queue", string(queueName))
		go func(q QueueName, s *asynq.Server) {
			if err := s.Run(mux); err != nil {
				errs <- fmt.Errorf("queue %s: %w", q, err)
				return
			}
			errs <- nil
		}(queueName, srv)
	}
	return <-errs
}

// Shutdown stops all servers, waiting for in-flight jobs.
func (p *WorkerPool) Shutdown() {
	for _, srv := range p.servers {
		srv.Shutdown()
	}
}

// exponentialBackoff doubles the delay on every attempt: base, 2x base,
// 4x base, and so on.
func exponentialBackoff(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		if n < 0 {
			n = 0
		}
		if n > 16 {
			n = 16
		}
		return base * time.Duration(1<<uint(n))
	}
}
