// Package notify pushes job lifecycle transitions to a configured
// callback URL so callers don't have to poll the tracker.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event is one job lifecycle transition.
type Event struct {
	JobID  string    `json:"job_id"`
	Type   string    `json:"type"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Notifier delivers events asynchronously over a buffered channel. A
// nil Notifier (no callback configured) drops everything silently.
type Notifier struct {
	url        string
	secret     string
	httpClient *http.Client
	events     chan Event
	done       chan struct{}
}

// New starts a Notifier delivering to callbackURL. Returns nil when
// callbackURL is empty.
func New(callbackURL, secret string) *Notifier {
	if callbackURL == "" {
		return nil
	}
	n := &Notifier{
		url:    callbackURL,
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		events: make(chan Event, 1000),
		done:   make(chan struct{}),
	}
	go n.processLoop()
	return n
}

// JobFinished enqueues a lifecycle event. Never blocks; when the buffer
// is full the event is dropped with a warning.
func (n *Notifier) JobFinished(jobID, taskType, status string) {
	if n == nil {
		return
	}
	ev := Event{JobID: jobID, Type: taskType, Status: status, At: time.Now().UTC()}
	select {
	case n.events <- ev:
	default:
		slog.Warn("notify queue full, dropping event", "job_id", jobID, "status", status)
	}
}

// Close stops the delivery loop and blocks until every queued event
// has been delivered or given up on.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	close(n.events)
	<-n.done
}

func (n *Notifier) processLoop() {
	defer close(n.done)
	for ev := range n.events {
		n.deliver(ev)
	}
}

func (n *Notifier) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal notify event", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(payload))
	if err != nil {
		slog.Error("notify request creation failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Job-Event", ev.Status)
	if n.secret != "" {
		req.Header.Set("X-Job-Signature", sign(payload, n.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		slog.Error("notify delivery failed", "error", err, "job_id", ev.JobID)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.Warn("notify received non-success response", "status", resp.StatusCode, "job_id", ev.JobID)
	}
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
