package synth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// sessionState enumerates the lifecycle of one streaming synthesis
// session. A session is single-use: it moves forward through these
// states and never back.
type sessionState int

const (
	stateConnecting sessionState = iota
	stateOpen
	stateAwaitingCompletion
	stateSettled
)

// machine is the transition core of a streaming session, kept free of
// any socket so it can be driven with synthetic events. Each handler
// consumes one inbound signal and reports whether the session settled.
//
// Settlement happens exactly once; every signal arriving afterwards is
// a no-op.
type machine struct {
	state        sessionState
	audio        []byte
	chunks       int
	responseDone bool
	sessionDone  bool
	failure      *Error
}

func newMachine() *machine {
	return &machine{state: stateConnecting}
}

func (m *machine) settled() bool { return m.state == stateSettled }

// audioBytes returns the accumulated audio after a successful
// settlement; nil when the session failed.
func (m *machine) audioBytes() []byte {
	if m.failure != nil {
		return nil
	}
	return m.audio
}

func (m *machine) err() *Error { return m.failure }

// opened records the transport-level connection-established signal.
func (m *machine) opened() {
	if m.state == stateConnecting {
		m.state = stateOpen
	}
}

// inputSent records that the full configuration/input/finish sequence
// was written; from here only completion signals remain.
func (m *machine) inputSent() {
	if m.state == stateOpen {
		m.state = stateAwaitingCompletion
	}
}

// handleMessage consumes one raw inbound frame.
func (m *machine) handleMessage(raw []byte) bool {
	if m.settled() {
		return true
	}

	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return m.fail(protocolError("unparseable message"))
	}
	if ev.Type == "" {
		return m.fail(protocolError("message missing type"))
	}

	switch ev.Type {
	case eventAudioDelta:
		if ev.Delta == nil {
			return m.fail(protocolError("audio delta missing payload"))
		}
		chunk, err := base64.StdEncoding.DecodeString(*ev.Delta)
		if err != nil {
			return m.fail(protocolError("audio delta is not valid base64"))
		}
		m.audio = append(m.audio, chunk...)
		m.chunks++
		return false

	case eventResponseDone:
		if ev.Response != nil && ev.Response.Status != "" && ev.Response.Status != statusCompleted {
			return m.fail(providerError(fmt.Sprintf("response finished with status %q", ev.Response.Status)))
		}
		m.responseDone = true
		if m.sessionDone {
			return m.settleSuccess()
		}
		return false

	case eventSessionFinished:
		m.sessionDone = true
		// Either completion signal may arrive first. A finished session
		// with neither a completed response nor any audio stays open
		// and is reaped by the timeout.
		if m.responseDone || m.chunks > 0 {
			return m.settleSuccess()
		}
		return false

	case eventError:
		msg := "provider error"
		if ev.Error != nil {
			msg = fmt.Sprintf("provider error %s: %s", ev.Error.Code, ev.Error.Message)
		}
		return m.fail(providerError(msg))
	}

	// Unrecognized but well-formed event types are ignored.
	return false
}

// handleClose consumes a connection-close signal. A late close after
// logical completion is not an error.
func (m *machine) handleClose(code int, text string) bool {
	if m.settled() {
		return true
	}
	if m.chunks > 0 && (m.responseDone || m.sessionDone) {
		return m.settleSuccess()
	}
	return m.fail(transportError(fmt.Sprintf("connection closed prematurely (code %d): %s", code, text), nil))
}

func (m *machine) handleTransportError(err error) bool {
	if m.settled() {
		return true
	}
	return m.fail(transportError("session transport failed", err))
}

func (m *machine) handleTimeout() bool {
	if m.settled() {
		return true
	}
	return m.fail(timeoutError("no terminal signal within session deadline"))
}

func (m *machine) settleSuccess() bool {
	if m.chunks == 0 {
		return m.fail(protocolError("no audio produced"))
	}
	m.state = stateSettled
	return true
}

func (m *machine) fail(e *Error) bool {
	m.failure = e
	m.state = stateSettled
	return true
}
