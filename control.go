package ws

import (
	"encoding/binary"
	"time"
)

// ControlEvents delivers ping/pong/close signals up to the connection
// layer. Close itself is reported once by the connection state machine
// when it tears the transport down (see conn.go); control only decides
// the effective status and reason.
type ControlEvents struct {
	Ping        func(payload []byte) // when set, replaces the default auto-pong
	Pong        func(payload []byte)
	PongTimeout func()
}

// control implements ping/pong bookkeeping and the close handshake
// described in section 4.7: pending pings tracked by payload, a
// pong-timeout timer, and status/reason parsing for received close
// frames that follows libws_private.c's _ws_handle_close_frame exactly
// where the high-level description is silent.
type control struct {
	w      *writer
	events ControlEvents

	pongTimeout time.Duration
	pending     map[string]time.Time

	localCloseSent    bool
	localCloseStatus  CloseStatus
	peerCloseReceived bool
	peerCloseStatus   CloseStatus
	peerCloseReason   string
}

func newControl(w *writer, pongTimeout time.Duration, events ControlEvents) *control {
	return &control{w: w, events: events, pongTimeout: pongTimeout, pending: make(map[string]time.Time)}
}

// SendPing writes a ping frame and records its payload as awaiting a
// pong. The caller (conn.go) is responsible for (re)starting the
// pong-timeout timer whenever the pending set becomes non-empty.
func (c *control) SendPing(payload []byte, now time.Time) error {
	if err := c.w.SendControl(OpPing, payload); err != nil {
		return err
	}
	c.pending[string(payload)] = now
	return nil
}

// SendPong writes an unsolicited or auto-triggered pong frame.
func (c *control) SendPong(payload []byte) error {
	return c.w.SendControl(OpPong, payload)
}

// HandlePingFrame implements section 4.7's received-ping behavior: the
// user handler fires if set, otherwise a pong auto-echoes the exact
// payload.
func (c *control) HandlePingFrame(payload []byte) error {
	if c.events.Ping != nil {
		c.events.Ping(payload)
		return nil
	}
	return c.SendPong(payload)
}

// HandlePongFrame removes any matching pending ping. Per
// _ws_handle_pong_frame, an unmatched pong is accepted silently rather
// than treated as an error.
func (c *control) HandlePongFrame(payload []byte) {
	delete(c.pending, string(payload))
	if c.events.Pong != nil {
		c.events.Pong(payload)
	}
}

// HasPendingPing reports whether any ping is still awaiting its pong,
// for the connection to decide whether a fired pong-timeout timer
// should actually invoke PongTimeout.
func (c *control) HasPendingPing() bool {
	return len(c.pending) > 0
}

// PongTimeoutFired is called when the connection's pong-timeout timer
// elapses. It only invokes the callback if a ping is still unacked,
// since the timer may fire after the matching pong already arrived.
func (c *control) PongTimeoutFired() {
	if c.HasPendingPing() && c.events.PongTimeout != nil {
		c.events.PongTimeout()
	}
}

// InitiateClose sends a close frame for status/reason, validating the
// status code is legal to appear on the wire. At most one local close
// is ever sent.
func (c *control) InitiateClose(status CloseStatus, reason string) error {
	if c.localCloseSent {
		return nil
	}
	if !status.validOnWire() {
		return &ProtocolError{Status: CloseProtocolError, Reason: "close status not valid on the wire"}
	}
	if len(reason) > controlMaxPayload-2 {
		reason = reason[:controlMaxPayload-2]
	}

	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(status))
	copy(payload[2:], reason)

	if err := c.w.SendControl(OpClose, payload); err != nil {
		return err
	}
	c.localCloseSent = true
	c.localCloseStatus = status
	return nil
}

// HandleCloseFrame parses an inbound close frame's payload per
// _ws_handle_close_frame, echoes a close if the local side has not
// already sent one (reusing the peer's status, per supplemented
// feature 2), and reports the effective status and reason for the
// connection's onclose callback.
//
// A payload of exactly one byte is a protocol error — a truncated
// status code — rather than being treated as "no status given".
func (c *control) HandleCloseFrame(payload []byte) (status CloseStatus, reason string, err error) {
	switch {
	case len(payload) == 0:
		status = CloseNoStatusReceived
	case len(payload) == 1:
		return 0, "", &ProtocolError{Status: CloseProtocolError, Reason: "close frame payload is a truncated status code"}
	default:
		status = CloseStatus(binary.BigEndian.Uint16(payload))
		reason = string(payload[2:])
		if !status.validOnWire() {
			status = CloseProtocolError
			reason = "peer sent an invalid close status"
		} else if !ValidateUTF8(payload[2:]) {
			status = CloseInvalidPayloadData
			reason = "close reason is not valid UTF-8"
		}
	}

	c.peerCloseReceived = true
	c.peerCloseStatus = status
	c.peerCloseReason = reason

	if !c.localCloseSent {
		echoStatus := status
		if echoStatus == CloseNoStatusReceived {
			echoStatus = CloseNormal
		}
		if echoErr := c.InitiateClose(echoStatus, reason); echoErr != nil {
			return status, reason, echoErr
		}
	}
	return status, reason, nil
}

// LocalCloseSent and PeerCloseReceived report the close-handshake
// bookkeeping the connection state machine needs to decide when both
// sides have exchanged close frames.
func (c *control) LocalCloseSent() bool    { return c.localCloseSent }
func (c *control) PeerCloseReceived() bool { return c.peerCloseReceived }
