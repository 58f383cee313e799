package ws

import (
	"errors"
	"fmt"
)

// CloseStatus is a RFC 6455 section 7.4 close status code.
type CloseStatus uint16

const (
	CloseNormal              CloseStatus = 1000
	CloseGoingAway           CloseStatus = 1001
	CloseProtocolError       CloseStatus = 1002
	CloseUnsupportedData     CloseStatus = 1003
	CloseNoStatusReceived    CloseStatus = 1005 // never sent on the wire
	CloseAbnormal            CloseStatus = 1006 // never sent on the wire
	CloseInvalidPayloadData  CloseStatus = 1007
	ClosePolicyViolation     CloseStatus = 1008
	CloseMessageTooBig       CloseStatus = 1009
	CloseMandatoryExtension  CloseStatus = 1010
	CloseInternalServerError CloseStatus = 1011
	CloseTLSHandshake        CloseStatus = 1015 // never sent on the wire
)

// reservedOnWire reports whether status must never appear framed on the wire.
func (s CloseStatus) reservedOnWire() bool {
	switch s {
	case CloseNoStatusReceived, CloseAbnormal, CloseTLSHandshake:
		return true
	}
	return false
}

// validOnWire reports whether status is legal to send or receive framed,
// per the RFC 6455 range 1000-1011 and the private-use range 3000-4999.
func (s CloseStatus) validOnWire() bool {
	if s.reservedOnWire() {
		return false
	}
	if s >= 1000 && s <= 1011 {
		return true
	}
	if s >= 3000 && s <= 4999 {
		return true
	}
	return false
}

func (s CloseStatus) String() string {
	switch s {
	case CloseNormal:
		return "normal closure"
	case CloseGoingAway:
		return "going away"
	case CloseProtocolError:
		return "protocol error"
	case CloseUnsupportedData:
		return "unsupported data"
	case CloseNoStatusReceived:
		return "no status received"
	case CloseAbnormal:
		return "abnormal closure"
	case CloseInvalidPayloadData:
		return "invalid payload data"
	case ClosePolicyViolation:
		return "policy violation"
	case CloseMessageTooBig:
		return "message too big"
	case CloseMandatoryExtension:
		return "mandatory extension missing"
	case CloseInternalServerError:
		return "internal server error"
	case CloseTLSHandshake:
		return "TLS handshake failure"
	}
	return fmt.Sprintf("close status %d", uint16(s))
}

// ProtocolError is raised by the frame parser, assembler or control
// protocol when the peer violates RFC 6455; its Status is then the close
// status the engine sends before tearing the connection down. The writer
// and control protocol also return it, without sending anything, when a
// local call would put an oversized control frame or a close status that
// is not valid on the wire.
type ProtocolError struct {
	Status CloseStatus
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("websocket protocol error (%s): %s", e.Status, e.Reason)
}

// HandshakeError is raised when the opening HTTP upgrade handshake fails
// validation. It never produces a framed close — the TCP connection is
// simply torn down, per RFC 6455 section 4.1.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return "websocket handshake failed: " + e.Reason
}

// TransportStage names which phase of establishing or using the
// transport a TransportError originated in, mirroring the distinct
// error origins libws_private.c reports separately (DNS vs connect vs
// TLS vs ordinary I/O).
type TransportStage string

const (
	StageDNS     TransportStage = "dns"
	StageConnect TransportStage = "connect"
	StageTLS     TransportStage = "tls"
	StageIO      TransportStage = "io"
)

// TransportError wraps a failure from the byte-transport collaborator.
// It never produces a framed close (status 1006 is never sent on the
// wire); it always transitions the connection straight to CLOSED.
type TransportError struct {
	Stage TransportStage
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("websocket transport error (%s): %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var (
	// ErrInvalidUTF8 is returned by SendMessage when asked to send a
	// text message whose payload is not well-formed UTF-8. Invalid UTF-8
	// on receive is reported as a *ProtocolError with status 1007
	// instead.
	ErrInvalidUTF8 = errors.New("websocket: invalid UTF-8 in text message")

	// ErrMessageTooBig is not returned by the engine: an inbound frame
	// or message over a configured cap is reported as a *ProtocolError
	// with status 1009.
	ErrMessageTooBig = errors.New("websocket: message exceeds configured maximum size")

	// ErrFrameDataIncomplete is returned by EndMessage when fewer
	// frame-data bytes were sent than BeginFrame declared.
	ErrFrameDataIncomplete = errors.New("websocket: frame data sent does not match declared length")

	// ErrFrameDataExceedsDeclared is returned by SendFrameData when the
	// aggregate bytes sent for the current frame would exceed the length
	// declared to BeginFrame.
	ErrFrameDataExceedsDeclared = errors.New("websocket: frame data exceeds declared frame length")

	// ErrConnectionClosed is returned by send operations once the
	// connection has moved to CLOSING or CLOSED.
	ErrConnectionClosed = errors.New("websocket: connection is closed")

	// ErrNotOpen is returned by operations that require state OPEN.
	ErrNotOpen = errors.New("websocket: connection is not open")

	// ErrWrongMode is returned by the streaming send API when it is used
	// out of sequence: BeginMessage while a streamed message is already
	// in progress, or BeginFrame/SendFrameData/EndMessage without one.
	ErrWrongMode = errors.New("websocket: connection is not configured for this API mode")
)
