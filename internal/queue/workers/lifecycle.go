package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/talevoice/backend/internal/synth"
)

// ErrCancelled is returned by handlers when a cancellation checkpoint
// fires; the job is then finalized as cancelled, not failed.
var ErrCancelled = errors.New("job cancelled")

// Tracker is the subset of the job tracker the lifecycle wrapper needs.
type Tracker interface {
	MarkRunning(ctx context.Context, id string) error
	SetProgress(ctx context.Context, id string, progress int, stage string) error
	FinishSucceeded(ctx context.Context, id string, result any) error
	FinishFailed(ctx context.Context, id, reasonCode, message string) error
	FinishCancelled(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)
	ClearCancel(ctx context.Context, id string) error
}

// Notifier pushes job lifecycle transitions to an external callback.
type Notifier interface {
	JobFinished(jobID, taskType, status string)
}

// HandlerFunc is a job-kind-specific handler executed under the
// lifecycle wrapper.
type HandlerFunc func(ctx context.Context, job *Job) (any, error)

// Job is the borrowed view of a running job handed to handlers. It
// carries the payload plus the progress and cancellation hooks.
type Job struct {
	ID      string
	Type    string
	Payload []byte

	tracker Tracker
	logger  *slog.Logger
}

// Progress records a progress percentage and stage label. Progress is
// observability only; failures to record it never affect the job.
func (j *Job) Progress(ctx context.Context, progress int, stage string) {
	if err := j.tracker.SetProgress(ctx, j.ID, progress, stage); err != nil {
		j.logger.Warn("failed to record progress", "job_id", j.ID, "error", err)
	}
}

// Cancelled is the cooperative cancellation checkpoint. Handlers call
// it between units of work; it never interrupts work in flight.
func (j *Job) Cancelled(ctx context.Context) bool {
	requested, err := j.tracker.CancelRequested(ctx, j.ID)
	if err != nil {
		j.logger.Warn("failed to check cancel flag", "job_id", j.ID, "error", err)
		return false
	}
	return requested
}

// Lifecycle wraps job handlers with uniform start/progress/finalize
// behavior. It never retries; retry policy lives in the dispatcher.
type Lifecycle struct {
	tracker  Tracker
	notifier Notifier
	logger   *slog.Logger
}

func NewLifecycle(tracker Tracker, notifier Notifier, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{tracker: tracker, notifier: notifier, logger: logger}
}

// Wrap adapts a HandlerFunc into an asynq handler. Exactly one of
// succeeded/failed/cancelled is recorded per attempt.
func (l *Lifecycle) Wrap(fn HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		jobID, _ := asynq.GetTaskID(ctx)
		job := &Job{
			ID:      jobID,
			Type:    t.Type(),
			Payload: t.Payload(),
			tracker: l.tracker,
			logger:  l.logger,
		}

		if err := l.tracker.MarkRunning(ctx, jobID); err != nil {
			l.logger.Warn("failed to mark job running", "job_id", jobID, "error", err)
		}
		job.Progress(ctx, 5, "received")

		result, err := fn(ctx, job)

		if errors.Is(err, ErrCancelled) {
			if err := l.tracker.FinishCancelled(ctx, jobID); err != nil {
				l.logger.Warn("failed to finalize cancelled job", "job_id", jobID, "error", err)
			}
			if err := l.tracker.ClearCancel(ctx, jobID); err != nil {
				l.logger.Warn("failed to clear cancel flag", "job_id", jobID, "error", err)
			}
			l.notify(jobID, t.Type(), "cancelled")
			l.logger.Info("job cancelled", "job_id", jobID, "type", t.Type())
			return fmt.Errorf("job %s cancelled: %w", jobID, asynq.SkipRetry)
		}

		if err != nil {
			code, message := classifyError(err)
			if err := l.tracker.FinishFailed(ctx, jobID, code, message); err != nil {
				l.logger.Warn("failed to finalize failed job", "job_id", jobID, "error", err)
			}
			l.notify(jobID, t.Type(), "failed")
			return err
		}

		if err := l.tracker.FinishSucceeded(ctx, jobID, result); err != nil {
			l.logger.Warn("failed to finalize succeeded job", "job_id", jobID, "error", err)
		}
		l.notify(jobID, t.Type(), "succeeded")
		l.logger.Info("job succeeded", "job_id", jobID, "type", t.Type())
		return nil
	}
}

func (l *Lifecycle) notify(jobID, taskType, status string) {
	if l.notifier != nil {
		l.notifier.JobFinished(jobID, taskType, status)
	}
}

// classifyError maps a handler error to a short reason code plus a
// human message for the job record.
func classifyError(err error) (string, string) {
	var synthErr *synth.Error
	if errors.As(err, &synthErr) {
		return string(synthErr.Code), synthErr.Message
	}
	return "internal_error", err.Error()
}
