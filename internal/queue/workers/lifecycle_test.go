package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talevoice/backend/internal/queue"
	"github.com/talevoice/backend/internal/synth"
)

type trackerCall struct {
	op     string
	detail string
}

type fakeTracker struct {
	calls        []trackerCall
	cancelFlag   bool
	result       any
	failCode     string
	failMessage  string
	progressLog  []string
	finalized    string
	clearedFlags int
}

func (f *fakeTracker) MarkRunning(ctx context.Context, id string) error {
	f.calls = append(f.calls, trackerCall{op: "running"})
	return nil
}

func (f *fakeTracker) SetProgress(ctx context.Context, id string, progress int, stage string) error {
	f.progressLog = append(f.progressLog, stage)
	return nil
}

func (f *fakeTracker) FinishSucceeded(ctx context.Context, id string, result any) error {
	f.finalized = "succeeded"
	f.result = result
	return nil
}

func (f *fakeTracker) FinishFailed(ctx context.Context, id, reasonCode, message string) error {
	f.finalized = "failed"
	f.failCode = reasonCode
	f.failMessage = message
	return nil
}

func (f *fakeTracker) FinishCancelled(ctx context.Context, id string) error {
	f.finalized = "cancelled"
	return nil
}

func (f *fakeTracker) CancelRequested(ctx context.Context, id string) (bool, error) {
	return f.cancelFlag, nil
}

func (f *fakeTracker) ClearCancel(ctx context.Context, id string) error {
	f.clearedFlags++
	return nil
}

type fakeNotifier struct {
	statuses []string
}

func (f *fakeNotifier) JobFinished(jobID, taskType, status string) {
	f.statuses = append(f.statuses, status)
}

func TestWrapFinalizesSuccess(t *testing.T) {
	tracker := &fakeTracker{}
	notifier := &fakeNotifier{}
	lc := NewLifecycle(tracker, notifier, slog.Default())

	handler := lc.Wrap(func(ctx context.Context, job *Job) (any, error) {
		job.Progress(ctx, 50, "halfway")
		return map[string]string{"ok": "yes"}, nil
	})

	err := handler(context.Background(), asynq.NewTask("voice:synthesize", nil))
	require.NoError(t, err)

	assert.Equal(t, "succeeded", tracker.finalized)
	assert.Equal(t, []string{"received", "halfway"}, tracker.progressLog, "initial progress precedes handler progress")
	assert.Equal(t, []string{"succeeded"}, notifier.statuses)
}

func TestWrapFinalizesFailureWithClassification(t *testing.T) {
	tracker := &fakeTracker{}
	lc := NewLifecycle(tracker, nil, slog.Default())

	handler := lc.Wrap(func(ctx context.Context, job *Job) (any, error) {
		return nil, &synth.Error{Code: synth.CodeTimeout, Message: "no terminal signal within session deadline"}
	})

	err := handler(context.Background(), asynq.NewTask("voice:synthesize", nil))
	require.Error(t, err, "failures propagate so the dispatcher can retry")
	assert.False(t, errors.Is(err, asynq.SkipRetry))

	assert.Equal(t, "failed", tracker.finalized)
	assert.Equal(t, "timeout", tracker.failCode)
	assert.Equal(t, "no terminal signal within session deadline", tracker.failMessage)
}

func TestWrapFinalizesWrappedSynthErrors(t *testing.T) {
	tracker := &fakeTracker{}
	lc := NewLifecycle(tracker, nil, slog.Default())

	handler := lc.Wrap(func(ctx context.Context, job *Job) (any, error) {
		base := &synth.Error{Code: synth.CodeProvider, Message: "voice is offline"}
		return nil, errors.Join(errors.New("synthesize"), base)
	})

	require.Error(t, handler(context.Background(), asynq.NewTask("voice:synthesize", nil)))
	assert.Equal(t, "provider_error", tracker.failCode)
}

func TestWrapFinalizesCancelledWithoutRetry(t *testing.T) {
	tracker := &fakeTracker{}
	notifier := &fakeNotifier{}
	lc := NewLifecycle(tracker, notifier, slog.Default())

	handler := lc.Wrap(func(ctx context.Context, job *Job) (any, error) {
		return nil, ErrCancelled
	})

	err := handler(context.Background(), asynq.NewTask("voice:synthesize", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "cancelled jobs must not be retried")

	assert.Equal(t, "cancelled", tracker.finalized)
	assert.Equal(t, 1, tracker.clearedFlags)
	assert.Equal(t, []string{"cancelled"}, notifier.statuses)
}

type fakeSynthesizer struct {
	result *synth.Result
	err    error
	calls  int
	last   synth.Request
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error) {
	f.calls++
	f.last = req
	return f.result, f.err
}

func voicePayload(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(queue.VoiceSynthesizePayload{
		Model: "voice-tts-realtime-v1",
		Voice: "v1",
		Text:  "Hello there, this is a test.",
	})
	require.NoError(t, err)
	return data
}

func TestVoiceWorkerProducesResult(t *testing.T) {
	tracker := &fakeTracker{}
	audio := []byte("RIFF....WAVE-not-real-but-opaque-here")
	s := &fakeSynthesizer{result: &synth.Result{Audio: audio, DurationMs: 167}}
	w := NewVoiceWorker(s, slog.Default())

	job := &Job{ID: "j1", Payload: voicePayload(t), tracker: tracker, logger: slog.Default()}
	result, err := w.ProcessJob(context.Background(), job)
	require.NoError(t, err)

	voiceResult, ok := result.(VoiceResult)
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString(audio), voiceResult.Audio)
	assert.Equal(t, "wav", voiceResult.Format)
	assert.Equal(t, 167, voiceResult.DurationMs)

	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "voice-tts-realtime-v1", s.last.Model)
	assert.Equal(t, []string{"synthesizing", "encoding"}, tracker.progressLog)
}

func TestVoiceWorkerChecksCancellationBeforeSynthesis(t *testing.T) {
	tracker := &fakeTracker{cancelFlag: true}
	s := &fakeSynthesizer{result: &synth.Result{}}
	w := NewVoiceWorker(s, slog.Default())

	job := &Job{ID: "j2", Payload: voicePayload(t), tracker: tracker, logger: slog.Default()}
	_, err := w.ProcessJob(context.Background(), job)

	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, s.calls, "cancelled jobs must not open a session")
}

func TestVoiceWorkerRejectsMalformedPayload(t *testing.T) {
	w := NewVoiceWorker(&fakeSynthesizer{}, slog.Default())
	job := &Job{ID: "j3", Payload: []byte("{nope"), tracker: &fakeTracker{}, logger: slog.Default()}

	_, err := w.ProcessJob(context.Background(), job)
	require.Error(t, err)
}

func TestVoiceWorkerPropagatesSynthesisErrors(t *testing.T) {
	s := &fakeSynthesizer{err: &synth.Error{Code: synth.CodeProvider, Message: "quota exceeded"}}
	w := NewVoiceWorker(s, slog.Default())
	job := &Job{ID: "j4", Payload: voicePayload(t), tracker: &fakeTracker{}, logger: slog.Default()}

	_, err := w.ProcessJob(context.Background(), job)
	var synthErr *synth.Error
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, synth.CodeProvider, synthErr.Code)
}
