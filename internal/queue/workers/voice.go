package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/talevoice/backend/internal/queue"
	"github.com/talevoice/backend/internal/synth"
)

// Synthesizer is the transport adapter contract the voice worker
// depends on.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error)
}

// VoiceResult is the payload stored on a succeeded synthesis job.
type VoiceResult struct {
	Audio      string `json:"audio"` // base64 WAV
	Format     string `json:"format"`
	DurationMs int    `json:"duration_ms"`
}

// VoiceWorker executes voice synthesis jobs.
type VoiceWorker struct {
	synth  Synthesizer
	logger *slog.Logger
}

func NewVoiceWorker(s Synthesizer, logger *slog.Logger) *VoiceWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoiceWorker{synth: s, logger: logger}
}

// ProcessJob synthesizes one line of text. Cancellation is checked
// before the synthesis call; an already-open session runs to its own
// termination and the flag decides how the record is finalized.
func (w *VoiceWorker) ProcessJob(ctx context.Context, job *Job) (any, error) {
	var payload queue.VoiceSynthesizePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if job.Cancelled(ctx) {
		return nil, ErrCancelled
	}
	job.Progress(ctx, 15, "synthesizing")

	w.logger.Info("synthesizing speech",
		"job_id", job.ID, "model", payload.Model, "voice", payload.Voice, "chars", len(payload.Text))

	result, err := w.synth.Synthesize(ctx, synth.Request{
		Model: payload.Model,
		Voice: payload.Voice,
		Text:  payload.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	job.Progress(ctx, 90, "encoding")
	if job.Cancelled(ctx) {
		return nil, ErrCancelled
	}

	return VoiceResult{
		Audio:      base64.StdEncoding.EncodeToString(result.Audio),
		Format:     "wav",
		DurationMs: result.DurationMs,
	}, nil
}
