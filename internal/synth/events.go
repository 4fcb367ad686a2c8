package synth

import "github.com/google/uuid"

// Client -> server event types.
const (
	eventSessionUpdate = "session.update"
	eventInputAppend   = "input_text_buffer.append"
	eventInputCommit   = "input_text_buffer.commit"
	eventSessionFinish = "session.finish"
)

// Server -> client event types.
const (
	eventAudioDelta      = "response.audio.delta"
	eventResponseDone    = "response.done"
	eventSessionFinished = "session.finished"
	eventError           = "error"
)

const statusCompleted = "completed"

type sessionSettings struct {
	Voice          string `json:"voice"`
	Mode           string `json:"mode"`
	ResponseFormat string `json:"response_format"`
	SampleRate     int    `json:"sample_rate"`
}

// outboundEvent is the client-side wire envelope. Every event carries a
// unique event_id and a type; the remaining fields are type-specific.
type outboundEvent struct {
	EventID string           `json:"event_id"`
	Type    string           `json:"type"`
	Session *sessionSettings `json:"session,omitempty"`
	Text    string           `json:"text,omitempty"`
}

func newOutboundEvent(eventType string) outboundEvent {
	return outboundEvent{EventID: uuid.NewString(), Type: eventType}
}

type inboundResponse struct {
	Status string `json:"status"`
}

type inboundError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// inboundEvent is the server-side wire envelope. Delta is a pointer so a
// missing payload field can be told apart from an empty one.
type inboundEvent struct {
	Type     string           `json:"type"`
	Delta    *string          `json:"delta,omitempty"`
	Response *inboundResponse `json:"response,omitempty"`
	Error    *inboundError    `json:"error,omitempty"`
}
