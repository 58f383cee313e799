package ws

import "github.com/valyala/bytebufferpool"

// AssemblerEvents delivers completed messages (message-mode) or
// streamed frame chunks (stream-mode) up to the connection layer.
// Exactly one of the two groups fires for a given assembler, matching
// the mode it was constructed with.
type AssemblerEvents struct {
	// Message-mode.
	Message func(payload []byte, binary bool) error

	// Stream-mode.
	FrameBegin func(binary bool, fin bool)
	FrameData  func(chunk []byte)
	FrameEnd   func()
}

// assembler joins a data frame's continuation sequence into logical
// messages and enforces the continuation rules: a continuation frame
// may only follow a non-FIN data frame of the same in-progress message,
// and a new data frame may not begin while one is already in progress.
// It is configured into exactly one of message-mode or stream-mode at
// construction, resolving which of the two callback groups in
// AssemblerEvents ever fires.
type assembler struct {
	streamMode bool
	events     AssemblerEvents

	maxMessageSize uint64

	inMessage   bool
	opcode      Opcode
	buf         *bytebufferpool.ByteBuffer
	utf8        utf8Validator
	textMessage bool
}

func newAssembler(streamMode bool, maxMessageSize uint64, events AssemblerEvents) *assembler {
	return &assembler{streamMode: streamMode, maxMessageSize: maxMessageSize, events: events}
}

// HeaderReady is wired to the frame parser's ParserEvents.HeaderReady
// for data frames only; control frames bypass the assembler entirely
// and are handled by the control protocol.
func (a *assembler) HeaderReady(h Header) error {
	if h.Opcode == OpContinuation {
		if !a.inMessage {
			return &ProtocolError{Status: CloseProtocolError, Reason: "continuation frame without a message in progress"}
		}
	} else {
		if a.inMessage {
			return &ProtocolError{Status: CloseProtocolError, Reason: "new data frame while a message is already in progress"}
		}
		a.inMessage = true
		a.opcode = h.Opcode
		a.textMessage = h.Opcode == OpText
		if !a.streamMode {
			a.buf = bytebufferpool.Get()
		}
		a.utf8 = utf8Validator{}
	}

	if a.streamMode && a.events.FrameBegin != nil {
		a.events.FrameBegin(a.opcode == OpBinary, h.Fin)
	}
	return nil
}

// PayloadChunk is wired to ParserEvents.PayloadChunk for data frames.
func (a *assembler) PayloadChunk(h Header, chunk []byte) error {
	if a.textMessage && len(chunk) > 0 {
		if !a.utf8.Feed(chunk) {
			return &ProtocolError{Status: CloseInvalidPayloadData, Reason: "invalid UTF-8 in text message"}
		}
	}

	if a.streamMode {
		if a.events.FrameData != nil {
			a.events.FrameData(chunk)
		}
		return nil
	}

	a.buf.Write(chunk)
	if a.maxMessageSize != 0 && uint64(a.buf.Len()) > a.maxMessageSize {
		return &ProtocolError{Status: CloseMessageTooBig, Reason: "message exceeds configured maximum size"}
	}
	return nil
}

// FrameEnd is wired to ParserEvents.FrameEnd for data frames.
func (a *assembler) FrameEnd(h Header) error {
	if a.streamMode && a.events.FrameEnd != nil {
		a.events.FrameEnd()
	}

	if !h.Fin {
		return nil
	}

	if a.textMessage && !a.utf8.Accepted() {
		return &ProtocolError{Status: CloseInvalidPayloadData, Reason: "text message ends mid UTF-8 sequence"}
	}

	a.inMessage = false
	if !a.streamMode {
		msg := append([]byte(nil), a.buf.B...)
		bytebufferpool.Put(a.buf)
		a.buf = nil
		if a.events.Message != nil {
			return a.events.Message(msg, a.opcode == OpBinary)
		}
	}
	return nil
}
