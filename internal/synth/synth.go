// Package synth turns text into spoken audio. It normalizes two
// incompatible provider transports, a realtime websocket session and a
// single request/response call, behind one Synthesize entry point that
// always yields a WAV container plus its playable duration.
package synth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one synthesis unit. The model id decides the
// transport: models whose name contains "realtime" go over the
// streaming session, everything else over a single HTTP call.
type Request struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Text  string `json:"text"`
}

// Result is the normalized synthesis output.
type Result struct {
	Audio      []byte
	DurationMs int
}

// ClientConfig holds the provider endpoints and session parameters.
type ClientConfig struct {
	APIKey           string
	RealtimeURL      string
	SpeechURL        string
	SampleRate       int
	SessionTimeoutMs int
}

// Client is the synthesis transport adapter. It is safe for concurrent
// use; each Synthesize call is an independent attempt with no retry
// state (retries live in the dispatcher).
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client with sensible defaults applied.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.SessionTimeoutMs == 0 {
		cfg.SessionTimeoutMs = 45000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Synthesize converts text to audio, choosing the transport from the
// model id. Both transports return the same result shape.
func (c *Client) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if req.Model == "" {
		return nil, configError("model is required")
	}
	if req.Voice == "" {
		return nil, configError("voice is required")
	}
	if req.Text == "" {
		return nil, configError("text is required")
	}

	if IsRealtimeModel(req.Model) {
		return c.synthesizeRealtime(ctx, req)
	}
	return c.synthesizeHTTP(ctx, req)
}

// IsRealtimeModel reports whether the model id names a realtime
// streaming model.
func IsRealtimeModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "realtime")
}

func (c *Client) synthesizeRealtime(ctx context.Context, req Request) (*Result, error) {
	sessionURL, err := c.sessionURL(req.Model)
	if err != nil {
		return nil, err
	}

	s := &session{
		url:        sessionURL,
		apiKey:     c.cfg.APIKey,
		voice:      req.Voice,
		text:       req.Text,
		sampleRate: c.cfg.SampleRate,
		timeout:    time.Duration(c.cfg.SessionTimeoutMs) * time.Millisecond,
		logger:     c.logger,
	}
	return s.run(ctx)
}

func (c *Client) sessionURL(model string) (string, error) {
	u, err := url.Parse(c.cfg.RealtimeURL)
	if err != nil {
		return "", configError("invalid realtime endpoint")
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
