package synth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaEvent(chunk []byte) []byte {
	return []byte(fmt.Sprintf(`{"type":"response.audio.delta","delta":%q}`,
		base64.StdEncoding.EncodeToString(chunk)))
}

func doneEvent(status string) []byte {
	return []byte(fmt.Sprintf(`{"type":"response.done","response":{"status":%q}}`, status))
}

var finishedEvent = []byte(`{"type":"session.finished"}`)

func openMachine() *machine {
	m := newMachine()
	m.opened()
	m.inputSent()
	return m
}

func TestMachineSettlesOnceDoneThenFinished(t *testing.T) {
	m := openMachine()

	assert.False(t, m.handleMessage(deltaEvent([]byte("abcd"))))
	assert.False(t, m.handleMessage(doneEvent("completed")))
	assert.True(t, m.handleMessage(finishedEvent))

	require.True(t, m.settled())
	require.Nil(t, m.err())
	assert.Equal(t, []byte("abcd"), m.audioBytes())

	// Everything after settlement is a no-op.
	m.handleMessage(deltaEvent([]byte("more")))
	m.handleTimeout()
	m.handleClose(1006, "gone")
	assert.Nil(t, m.err())
	assert.Equal(t, []byte("abcd"), m.audioBytes())
}

func TestMachineFinishedFirstWithAudioSettlesSuccess(t *testing.T) {
	m := openMachine()

	m.handleMessage(deltaEvent([]byte("xy")))
	assert.True(t, m.handleMessage(finishedEvent), "session.finished with accumulated audio settles")

	require.True(t, m.settled())
	assert.Nil(t, m.err())
	assert.Equal(t, []byte("xy"), m.audioBytes())
}

func TestMachineDeltasAppendInArrivalOrder(t *testing.T) {
	m := openMachine()

	m.handleMessage(deltaEvent([]byte("first-")))
	m.handleMessage(deltaEvent([]byte("second-")))
	m.handleMessage(deltaEvent([]byte("third")))
	m.handleMessage(doneEvent("completed"))
	m.handleMessage(finishedEvent)

	assert.Equal(t, []byte("first-second-third"), m.audioBytes())
}

func TestMachineFailedResponseStatusWins(t *testing.T) {
	m := openMachine()

	m.handleMessage(deltaEvent([]byte("partial")))
	assert.True(t, m.handleMessage(doneEvent("failed")))

	require.True(t, m.settled())
	require.NotNil(t, m.err())
	assert.Equal(t, CodeProvider, m.err().Code)
	assert.Nil(t, m.audioBytes(), "partial audio is discarded on failure")

	// A late session.finished cannot flip the outcome.
	m.handleMessage(finishedEvent)
	assert.Equal(t, CodeProvider, m.err().Code)
}

func TestMachineNoAudioOnSuccessIsProtocolError(t *testing.T) {
	m := openMachine()

	m.handleMessage(doneEvent("completed"))
	assert.True(t, m.handleMessage(finishedEvent))

	require.NotNil(t, m.err())
	assert.Equal(t, CodeProtocol, m.err().Code)
	assert.Contains(t, m.err().Message, "no audio")
}

func TestMachineFinishedFirstWithoutAudioWaitsForTimeout(t *testing.T) {
	// Known edge case: session.finished arriving before any audio and
	// before response.done does not settle; the timeout reaps it.
	m := openMachine()

	assert.False(t, m.handleMessage(finishedEvent))
	assert.False(t, m.settled())

	assert.True(t, m.handleTimeout())
	require.NotNil(t, m.err())
	assert.Equal(t, CodeTimeout, m.err().Code)
}

func TestMachineProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"unparseable", []byte(`{not json`)},
		{"missing type", []byte(`{"delta":"aGk="}`)},
		{"delta missing payload", []byte(`{"type":"response.audio.delta"}`)},
		{"delta invalid base64", []byte(`{"type":"response.audio.delta","delta":"!!not-base64!!"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := openMachine()
			assert.True(t, m.handleMessage(tt.raw))
			require.NotNil(t, m.err())
			assert.Equal(t, CodeProtocol, m.err().Code)
		})
	}
}

func TestMachineIgnoresUnknownEventTypes(t *testing.T) {
	m := openMachine()

	assert.False(t, m.handleMessage([]byte(`{"type":"rate_limits.updated"}`)))
	assert.False(t, m.settled())

	m.handleMessage(deltaEvent([]byte("ok")))
	m.handleMessage(finishedEvent)
	assert.Nil(t, m.err())
}

func TestMachineErrorEventSettlesProviderFailure(t *testing.T) {
	m := openMachine()

	raw := []byte(`{"type":"error","error":{"code":"voice_unavailable","message":"voice is offline"}}`)
	assert.True(t, m.handleMessage(raw))
	require.NotNil(t, m.err())
	assert.Equal(t, CodeProvider, m.err().Code)
	assert.Contains(t, m.err().Message, "voice_unavailable")
}

func TestMachineCloseAfterCompletionIsSuccess(t *testing.T) {
	m := openMachine()

	m.handleMessage(deltaEvent([]byte("done-audio")))
	m.handleMessage(doneEvent("completed"))
	assert.True(t, m.handleClose(1000, ""))

	assert.Nil(t, m.err())
	assert.Equal(t, []byte("done-audio"), m.audioBytes())
}

func TestMachinePrematureCloseFails(t *testing.T) {
	m := openMachine()

	m.handleMessage(deltaEvent([]byte("partial")))
	assert.True(t, m.handleClose(1006, "abnormal closure"))

	require.NotNil(t, m.err())
	assert.Equal(t, CodeTransport, m.err().Code)
	assert.Contains(t, m.err().Message, "1006")
}

func TestMachineTransportErrorFails(t *testing.T) {
	m := openMachine()
	assert.True(t, m.handleTransportError(fmt.Errorf("broken pipe")))
	require.NotNil(t, m.err())
	assert.Equal(t, CodeTransport, m.err().Code)
}

func TestMachineEndToEndScenario(t *testing.T) {
	// Two PCM deltas of 4800 and 3200 bytes, completed then finished.
	m := openMachine()

	m.handleMessage(deltaEvent(make([]byte, 4800)))
	m.handleMessage(deltaEvent(make([]byte, 3200)))
	m.handleMessage(doneEvent("completed"))
	assert.True(t, m.handleMessage(finishedEvent))

	require.Nil(t, m.err())
	assert.Len(t, m.audioBytes(), 8000)
}

func TestInboundEventDecoding(t *testing.T) {
	var ev inboundEvent
	require.NoError(t, json.Unmarshal(doneEvent("completed"), &ev))
	require.NotNil(t, ev.Response)
	assert.Equal(t, "completed", ev.Response.Status)
	assert.Nil(t, ev.Delta)
}
