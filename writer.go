package ws

import (
	"crypto/rand"
	"io"

	"github.com/valyala/bytebufferpool"
)

// FrameSink is where the writer hands off finished, already-masked wire
// frames. The connection wires this to its rate-limited transport write.
// WriteFrame must not retain payload past the call: it is backed by a
// pooled scratch buffer the writer reclaims immediately after.
type FrameSink interface {
	WriteFrame(header []byte, payload []byte) error
}

// writer builds outbound frames, masks them as RFC 6455 requires of
// clients, and splits payloads above maxFrameSize across continuation
// frames. maxFrameSize == 0 means unlimited (always a single frame).
type writer struct {
	sink         FrameSink
	maxFrameSize uint64

	streaming      bool
	streamOpcode   Opcode
	streamFirst    bool
	frameRemaining uint64
	frameSent      uint64
	frameFin       bool
}

func newWriter(sink FrameSink, maxFrameSize uint64) *writer {
	return &writer{sink: sink, maxFrameSize: maxFrameSize}
}

func randomMaskKey() ([4]byte, error) {
	var key [4]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

func (w *writer) writeFrame(fin bool, opcode Opcode, payload []byte) error {
	key, err := randomMaskKey()
	if err != nil {
		return err
	}

	h := Header{
		Fin:        fin,
		Opcode:     opcode,
		Masked:     true,
		MaskKey:    key,
		PayloadLen: uint64(len(payload)),
	}
	hdrBuf, err := EncodeHeader(nil, h)
	if err != nil {
		return err
	}

	scratch := bytebufferpool.Get()
	defer bytebufferpool.Put(scratch)
	scratch.Write(payload)
	MaskXOR(key, scratch.B)

	return w.sink.WriteFrame(hdrBuf, scratch.B)
}

// SendMessage fragments payload into one or more frames per the
// configured maxFrameSize and writes them in order. isBinary selects
// opcode binary over text for the first frame.
func (w *writer) SendMessage(payload []byte, isBinary bool) error {
	opcode := OpText
	if isBinary {
		opcode = OpBinary
	}
	if !isBinary && !ValidateUTF8(payload) {
		return ErrInvalidUTF8
	}

	if w.maxFrameSize == 0 || uint64(len(payload)) <= w.maxFrameSize {
		return w.writeFrame(true, opcode, payload)
	}

	first := true
	for len(payload) > 0 {
		n := w.maxFrameSize
		if n > uint64(len(payload)) {
			n = uint64(len(payload))
		}
		chunk := payload[:n]
		payload = payload[n:]

		op := OpContinuation
		if first {
			op = opcode
		}
		fin := len(payload) == 0
		if err := w.writeFrame(fin, op, chunk); err != nil {
			return err
		}
		first = false
	}
	return nil
}

// SendControl writes a complete, unfragmented control frame (close, ping
// or pong). Control frames are injected ahead of any in-progress
// streaming message by virtue of being written to the sink directly,
// rather than queued behind streamed frame data.
func (w *writer) SendControl(opcode Opcode, payload []byte) error {
	if len(payload) > controlMaxPayload {
		return &ProtocolError{Status: CloseProtocolError, Reason: "control frame payload exceeds 125 bytes"}
	}
	return w.writeFrame(true, opcode, payload)
}

// BeginMessage starts a streaming message of the given opcode (text or
// binary). Use BeginFrame/SendFrameData/EndMessage to emit its frames.
func (w *writer) BeginMessage(isBinary bool) error {
	if w.streaming {
		return ErrWrongMode
	}
	w.streaming = true
	w.streamFirst = true
	w.streamOpcode = OpText
	if isBinary {
		w.streamOpcode = OpBinary
	}
	return nil
}

// BeginFrame declares the length of the next frame of a streaming
// message. fin marks it as the message's final frame.
func (w *writer) BeginFrame(length uint64, fin bool) error {
	if !w.streaming {
		return ErrWrongMode
	}
	w.frameRemaining = length
	w.frameSent = 0
	w.frameFin = fin
	return nil
}

// SendFrameData writes bytes of the frame BeginFrame declared. The
// aggregate across calls for one frame must not exceed its declared
// length.
func (w *writer) SendFrameData(data []byte) error {
	if !w.streaming {
		return ErrWrongMode
	}
	if w.frameSent+uint64(len(data)) > w.frameRemaining {
		return ErrFrameDataExceedsDeclared
	}

	op := OpContinuation
	if w.streamFirst {
		op = w.streamOpcode
	}
	complete := w.frameSent+uint64(len(data)) == w.frameRemaining
	if err := w.writeFrame(complete && w.frameFin, op, data); err != nil {
		return err
	}

	w.frameSent += uint64(len(data))
	if complete {
		w.streamFirst = false
	}
	return nil
}

// EndMessage finishes a streaming message. If the last frame begun via
// BeginFrame still has declared bytes outstanding, EndMessage returns
// ErrFrameDataIncomplete rather than silently closing the message. If
// that frame was not marked fin, EndMessage writes a zero-length final
// frame to end the message.
func (w *writer) EndMessage() error {
	if !w.streaming {
		return ErrWrongMode
	}
	defer func() { w.streaming = false }()

	if w.frameSent != w.frameRemaining {
		return ErrFrameDataIncomplete
	}
	if !w.frameFin {
		op := OpContinuation
		if w.streamFirst {
			op = w.streamOpcode
		}
		return w.writeFrame(true, op, nil)
	}
	return nil
}
