package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/talevoice/backend/internal/audio"
)

type speechInput struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type speechParameters struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

type speechRequest struct {
	Model      string           `json:"model"`
	Input      speechInput      `json:"input"`
	Parameters speechParameters `json:"parameters"`
}

type speechAudio struct {
	Data string `json:"data"`
}

type speechOutput struct {
	Audio    *speechAudio `json:"audio,omitempty"`
	AudioURL string       `json:"audio_url,omitempty"`
}

type speechResponse struct {
	Output *speechOutput `json:"output"`
}

// synthesizeHTTP performs one request/response synthesis call. The
// provider answers with either inline base64 audio or a URL to fetch.
func (c *Client) synthesizeHTTP(ctx context.Context, req Request) (*Result, error) {
	body := speechRequest{
		Model: req.Model,
		Input: speechInput{Text: req.Text, Voice: req.Voice},
		Parameters: speechParameters{
			Format:     "wav",
			SampleRate: c.cfg.SampleRate,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.SpeechURL, bytes.NewReader(data))
	if err != nil {
		return nil, transportError("build speech request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError("speech request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, providerError(fmt.Sprintf("speech call failed (status %d): %s", resp.StatusCode, truncate(respBody, 256)))
	}

	var parsed speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, providerError("speech response is not valid JSON")
	}

	raw, err := c.extractAudio(ctx, parsed)
	if err != nil {
		return nil, err
	}

	wav := audio.Normalize(raw, c.cfg.SampleRate)
	return &Result{Audio: wav, DurationMs: audio.DurationMs(wav)}, nil
}

func (c *Client) extractAudio(ctx context.Context, resp speechResponse) ([]byte, error) {
	if resp.Output == nil {
		return nil, providerError("speech response missing output")
	}

	if resp.Output.Audio != nil {
		raw, err := base64.StdEncoding.DecodeString(resp.Output.Audio.Data)
		if err != nil {
			return nil, providerError("inline audio is not valid base64")
		}
		return raw, nil
	}

	if resp.Output.AudioURL != "" {
		return c.fetchAudio(ctx, resp.Output.AudioURL)
	}

	return nil, providerError("speech response contained no audio")
}

func (c *Client) fetchAudio(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, transportError("build audio download request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("audio download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providerError(fmt.Sprintf("audio download failed (status %d)", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("read downloaded audio", err)
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
