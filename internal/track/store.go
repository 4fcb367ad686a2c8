// Package track keeps the observable side of a job's life in Redis:
// its status, progress, cooperative cancellation flag and final result.
// Domain entities themselves are persisted elsewhere; this store only
// holds what callers poll while a job runs, with bounded retention.
package track

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is the job's observable state.
type Record struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Queue      string          `json:"queue"`
	Status     Status          `json:"status"`
	Progress   int             `json:"progress"`
	Stage      string          `json:"stage,omitempty"`
	Priority   int             `json:"priority,omitempty"`
	ReasonCode string          `json:"reason_code,omitempty"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func recordKey(id string) string { return "job:record:" + id }
func cancelKey(id string) string { return "job:cancel:" + id }

func (s *Store) Create(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusQueued
	}
	return s.save(ctx, rec)
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	val, err := s.client.Get(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job record %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("decode job record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, id, func(rec *Record) {
		rec.Status = StatusRunning
	})
}

func (s *Store) SetProgress(ctx context.Context, id string, progress int, stage string) error {
	return s.update(ctx, id, func(rec *Record) {
		rec.Progress = progress
		rec.Stage = stage
	})
}

func (s *Store) FinishSucceeded(ctx context.Context, id string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	return s.update(ctx, id, func(rec *Record) {
		rec.Status = StatusSucceeded
		rec.Progress = 100
		rec.Stage = "done"
		rec.Result = data
	})
}

func (s *Store) FinishFailed(ctx context.Context, id, reasonCode, message string) error {
	return s.update(ctx, id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.ReasonCode = reasonCode
		rec.Error = message
	})
}

func (s *Store) FinishCancelled(ctx context.Context, id string) error {
	return s.update(ctx, id, func(rec *Record) {
		rec.Status = StatusCancelled
		rec.ReasonCode = "cancelled"
	})
}

// RequestCancel raises the cooperative cancellation flag. Running
// handlers observe it at their checkpoints; it does not preempt work
// already in flight.
func (s *Store) RequestCancel(ctx context.Context, id string) error {
	return s.client.Set(ctx, cancelKey(id), "1", s.ttl).Err()
}

func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("check cancel flag %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) ClearCancel(ctx context.Context, id string) error {
	return s.client.Del(ctx, cancelKey(id)).Err()
}

func (s *Store) update(ctx context.Context, id string, mutate func(*Record)) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(rec)
	rec.UpdatedAt = time.Now().UTC()
	return s.save(ctx, rec)
}

func (s *Store) save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	return s.client.Set(ctx, recordKey(rec.ID), data, s.ttl).Err()
}
