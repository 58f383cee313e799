package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestControl(t *testing.T, events ControlEvents) (*control, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	w := newWriter(sink, 0)
	return newControl(w, 0, events), sink
}

func TestControlDefaultPingHandlerEchoesPong(t *testing.T) {
	c, sink := newTestControl(t, ControlEvents{})
	require.NoError(t, c.HandlePingFrame([]byte("abc")))
	require.Len(t, sink.frames, 1)
	assert.Equal(t, OpPong, sink.frames[0].header.Opcode)
	assert.Equal(t, []byte("abc"), sink.frames[0].payload)
}

func TestControlUserPingHandlerSuppressesAutoPong(t *testing.T) {
	var seen []byte
	c, sink := newTestControl(t, ControlEvents{
		Ping: func(payload []byte) { seen = payload },
	})
	require.NoError(t, c.HandlePingFrame([]byte("abc")))
	assert.Equal(t, []byte("abc"), seen)
	assert.Empty(t, sink.frames)
}

func TestControlPongClearsPendingPing(t *testing.T) {
	c, _ := newTestControl(t, ControlEvents{})
	require.NoError(t, c.SendPing([]byte("x"), time.Now()))
	assert.True(t, c.HasPendingPing())
	c.HandlePongFrame([]byte("x"))
	assert.False(t, c.HasPendingPing())
}

func TestControlUnsolicitedPongAcceptedSilently(t *testing.T) {
	var firedPayload []byte
	c, _ := newTestControl(t, ControlEvents{
		Pong: func(payload []byte) { firedPayload = payload },
	})
	c.HandlePongFrame([]byte("never sent"))
	assert.Equal(t, []byte("never sent"), firedPayload)
	assert.False(t, c.HasPendingPing())
}

func TestControlPongTimeoutOnlyFiresWithPendingPing(t *testing.T) {
	fired := 0
	c, _ := newTestControl(t, ControlEvents{
		PongTimeout: func() { fired++ },
	})
	c.PongTimeoutFired()
	assert.Equal(t, 0, fired)

	require.NoError(t, c.SendPing([]byte("x"), time.Now()))
	c.PongTimeoutFired()
	assert.Equal(t, 1, fired)
}

// TestControlInitiateCloseScenarioS4 matches scenario S4.
func TestControlInitiateCloseScenarioS4(t *testing.T) {
	c, sink := newTestControl(t, ControlEvents{})
	require.NoError(t, c.InitiateClose(CloseGoingAway, "bye"))

	require.Len(t, sink.frames, 1)
	f := sink.frames[0]
	assert.Equal(t, OpClose, f.header.Opcode)
	assert.Equal(t, []byte{0x03, 0xE9, 'b', 'y', 'e'}, f.payload)
	assert.True(t, c.LocalCloseSent())
}

func TestControlInitiateCloseRejectsReservedStatus(t *testing.T) {
	c, _ := newTestControl(t, ControlEvents{})
	for _, s := range []CloseStatus{CloseNoStatusReceived, CloseAbnormal, CloseTLSHandshake} {
		err := c.InitiateClose(s, "")
		assert.Error(t, err, "status %v", s)
	}
}

func TestControlHandleCloseFrameEchoesPeerStatusWhenNoneSentLocally(t *testing.T) {
	c, sink := newTestControl(t, ControlEvents{})
	payload := []byte{0x03, 0xE9} // 1001 going away, no reason
	status, reason, err := c.HandleCloseFrame(payload)
	require.NoError(t, err)
	assert.Equal(t, CloseGoingAway, status)
	assert.Empty(t, reason)

	require.Len(t, sink.frames, 1)
	echoed := sink.frames[0]
	assert.Equal(t, uint16(CloseGoingAway), uint16(echoed.payload[0])<<8|uint16(echoed.payload[1]))
	assert.True(t, c.PeerCloseReceived())
}

func TestControlHandleCloseFrameDoesNotEchoTwice(t *testing.T) {
	c, sink := newTestControl(t, ControlEvents{})
	require.NoError(t, c.InitiateClose(CloseNormal, ""))
	_, _, err := c.HandleCloseFrame([]byte{0x03, 0xE9})
	require.NoError(t, err)
	assert.Len(t, sink.frames, 1, "should not send a second close frame")
}

func TestControlHandleCloseFrameRejectsTruncatedStatus(t *testing.T) {
	c, _ := newTestControl(t, ControlEvents{})
	_, _, err := c.HandleCloseFrame([]byte{0x03})
	var pe *ProtocolError
	require.Error(t, err)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CloseProtocolError, pe.Status)
}

func TestControlHandleCloseFrameNoStatusGiven(t *testing.T) {
	c, sink := newTestControl(t, ControlEvents{})
	status, _, err := c.HandleCloseFrame(nil)
	require.NoError(t, err)
	assert.Equal(t, CloseNoStatusReceived, status)
	require.Len(t, sink.frames, 1)
	assert.Equal(t, uint16(CloseNormal), uint16(sink.frames[0].payload[0])<<8|uint16(sink.frames[0].payload[1]))
}
