package synth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talevoice/backend/internal/audio"
)

// session drives one realtime synthesis exchange over a websocket. It
// is created per request and never reused; retries belong to the
// dispatcher at the job level.
type session struct {
	url        string
	apiKey     string
	voice      string
	text       string
	sampleRate int
	timeout    time.Duration
	logger     *slog.Logger
}

func (s *session) run(ctx context.Context) (*Result, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := http.Header{}
	if s.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.apiKey)
	}

	conn, resp, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return nil, transportError("session connect failed (status "+resp.Status+")", err)
		}
		return nil, transportError("session connect failed", err)
	}

	m := newMachine()
	m.opened()

	// Connection is up: configure the session, append and commit the
	// input text, then ask the server to finish. Order matters.
	configure := newOutboundEvent(eventSessionUpdate)
	configure.Session = &sessionSettings{
		Voice:          s.voice,
		Mode:           "speech",
		ResponseFormat: "pcm16",
		SampleRate:     s.sampleRate,
	}
	appendText := newOutboundEvent(eventInputAppend)
	appendText.Text = s.text

	setup := []outboundEvent{
		configure,
		appendText,
		newOutboundEvent(eventInputCommit),
		newOutboundEvent(eventSessionFinish),
	}
	for _, ev := range setup {
		if err := conn.WriteJSON(ev); err != nil {
			m.handleTransportError(err)
			break
		}
	}
	if !m.settled() {
		m.inputSent()
	}

	done := make(chan struct{})
	defer close(done)
	msgs := make(chan []byte)
	readErrs := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case readErrs <- err:
				case <-done:
				}
				return
			}
			select {
			case msgs <- data:
			case <-done:
				return
			}
		}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for !m.settled() {
		select {
		case raw := <-msgs:
			m.handleMessage(raw)
		case err := <-readErrs:
			if closeErr, ok := err.(*websocket.CloseError); ok {
				m.handleClose(closeErr.Code, closeErr.Text)
			} else {
				m.handleTransportError(err)
			}
		case <-timer.C:
			m.handleTimeout()
		case <-ctx.Done():
			m.handleTransportError(ctx.Err())
		}
	}

	if sessionErr := m.err(); sessionErr != nil {
		s.closeConn(conn, websocket.CloseInternalServerErr)
		s.logger.Warn("streaming session failed",
			"code", string(sessionErr.Code), "error", sessionErr.Message)
		return nil, sessionErr
	}

	s.closeConn(conn, websocket.CloseNormalClosure)

	wav := audio.Normalize(m.audioBytes(), s.sampleRate)
	result := &Result{Audio: wav, DurationMs: audio.DurationMs(wav)}
	s.logger.Info("streaming session settled",
		"audio_bytes", len(result.Audio), "duration_ms", result.DurationMs)
	return result, nil
}

func (s *session) closeConn(conn *websocket.Conn, code int) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	_ = conn.Close()
}
