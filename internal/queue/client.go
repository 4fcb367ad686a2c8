package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/talevoice/backend/internal/track"
)

// enqueuer is the slice of asynq.Client the dispatcher uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// taskRemover is the slice of asynq.Inspector the dispatcher uses.
type taskRemover interface {
	DeleteTask(queue, id string) error
}

// Tracker is the subset of the job tracker the dispatcher needs.
type Tracker interface {
	Create(ctx context.Context, rec *track.Record) error
	Get(ctx context.Context, id string) (*track.Record, error)
	RequestCancel(ctx context.Context, id string) error
	FinishCancelled(ctx context.Context, id string) error
}

// SubmitOptions tunes a single submission. DedupeKey makes submission
// idempotent: re-submitting the same key while the job is queued or
// in flight returns the existing job instead of creating a duplicate.
type SubmitOptions struct {
	Priority  int
	DedupeKey string
}

type queuePolicy struct {
	MaxRetry int
	Timeout  time.Duration
}

// Dispatcher routes jobs to per-kind queues over a shared broker
// connection. The broker clients are injected at construction; nothing
// else in the process talks to the broker directly.
type Dispatcher struct {
	client    enqueuer
	inspector taskRemover
	tracker   Tracker
	retention time.Duration
	policies  map[QueueName]queuePolicy
	logger    *slog.Logger
}

// DispatcherConfig carries the per-queue retry policies and history
// retention for the dispatcher.
type DispatcherConfig struct {
	MaxRetry       int
	RetentionHours int
}

// NewDispatcher creates a Dispatcher on an existing broker connection.
func NewDispatcher(redisOpt asynq.RedisClientOpt, tracker Tracker, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 5
	}
	if cfg.RetentionHours <= 0 {
		cfg.RetentionHours = 24
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		tracker:   tracker,
		retention: time.Duration(cfg.RetentionHours) * time.Hour,
		policies: map[QueueName]queuePolicy{
			QueueVoice:   {MaxRetry: cfg.MaxRetry, Timeout: 5 * time.Minute},
			QueueImage:   {MaxRetry: cfg.MaxRetry, Timeout: 10 * time.Minute},
			QueueVideo:   {MaxRetry: 3, Timeout: 30 * time.Minute},
			QueueText:    {MaxRetry: cfg.MaxRetry, Timeout: 2 * time.Minute},
			QueueDefault: {MaxRetry: cfg.MaxRetry, Timeout: 5 * time.Minute},
		},
		logger: logger,
	}
}

func (d *Dispatcher) Close() error {
	return d.client.Close()
}

// Submit enqueues a job and returns its id. The job id doubles as the
// broker task id, so a dedupe-key collision surfaces as a task-id
// conflict and resolves to the already-submitted job.
func (d *Dispatcher) Submit(ctx context.Context, taskType TaskType, payload any, opts SubmitOptions) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	jobID := opts.DedupeKey
	if jobID == "" {
		jobID = uuid.NewString()
	}

	queueName := Classify(taskType)
	policy := d.policies[queueName]

	task := asynq.NewTask(string(taskType), data)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobID),
		asynq.Queue(string(queueName)),
		asynq.MaxRetry(policy.MaxRetry),
		asynq.Timeout(policy.Timeout),
		asynq.Retention(d.retention),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			d.logger.Info("duplicate submission", "job_id", jobID, "type", string(taskType))
			return jobID, nil
		}
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	rec := &track.Record{
		ID:       jobID,
		Type:     string(taskType),
		Queue:    string(queueName),
		Status:   track.StatusQueued,
		Priority: opts.Priority,
	}
	if err := d.tracker.Create(ctx, rec); err != nil {
		d.logger.Warn("failed to create job record", "job_id", jobID, "error", err)
	}

	d.logger.Info("job submitted", "job_id", jobID, "type", string(taskType), "queue", string(queueName))
	return jobID, nil
}

// Remove cancels a job best-effort. Queued jobs are deleted from the
// broker; running jobs get the cooperative cancel flag raised and
// finish through their next checkpoint. Jobs already in a terminal
// state are left untouched: their broker entries linger only for
// retention and deleting one must not rewrite the recorded outcome.
// Returns whether a cancellable job was found.
func (d *Dispatcher) Remove(ctx context.Context, jobID string) bool {
	rec, err := d.tracker.Get(ctx, jobID)
	if err != nil || rec == nil {
		return false
	}

	if rec.Status == track.StatusQueued {
		for _, q := range AllQueues {
			if err := d.inspector.DeleteTask(string(q), jobID); err == nil {
				if err := d.tracker.FinishCancelled(ctx, jobID); err != nil {
					d.logger.Warn("failed to mark job cancelled", "job_id", jobID, "error", err)
				}
				d.logger.Info("job removed", "job_id", jobID, "queue", string(q))
				return true
			}
		}
		// The broker refused the delete, so a worker picked the job up
		// between the record read and now. Fall through to the flag.
	}

	switch rec.Status {
	case track.StatusQueued, track.StatusRunning:
		if err := d.tracker.RequestCancel(ctx, jobID); err != nil {
			d.logger.Warn("failed to raise cancel flag", "job_id", jobID, "error", err)
			return false
		}
		d.logger.Info("job cancellation requested", "job_id", jobID)
		return true
	}
	return false
}
