package ws

import "encoding/binary"

// parseState names a step of the inbound frame parser, mirroring
// ws_parse_state_to_string's diagnostic states one for one.
type parseState int32

const (
	psFirstByte parseState = iota
	psSecondByte
	psExtLen16
	psExtLen64
	psPayload
)

func parseStateToString(s parseState) string {
	switch s {
	case psFirstByte:
		return "FIRST_BYTE"
	case psSecondByte:
		return "SECOND_BYTE"
	case psExtLen16:
		return "EXT_LEN_16"
	case psExtLen64:
		return "EXT_LEN_64"
	case psPayload:
		return "PAYLOAD"
	}
	return "UNKNOWN"
}

// ParserEvents is the single capability table the frame parser reports
// through, one function per signal instead of a setter per callback.
type ParserEvents struct {
	// HeaderReady fires once a frame's header is fully decoded, before
	// any payload byte has been delivered.
	HeaderReady func(Header) error

	// PayloadChunk fires with a slice of the current frame's payload.
	// For control frames it fires exactly once, with the full payload
	// (buffered internally, since control frames are always <=125
	// bytes); for data frames it fires once per chunk actually
	// available this Feed call, which may split a single frame's
	// payload across many calls.
	PayloadChunk func(h Header, chunk []byte) error

	// FrameEnd fires once a frame's payload has been fully delivered.
	FrameEnd func(h Header) error
}

// parser is a byte-driven RFC 6455 frame parser. It never blocks: Feed
// consumes whatever the transport made available this tick and returns,
// carrying partial-frame state to the next call.
type parser struct {
	state parseState

	// maxInboundFrame caps a single frame's declared payload length; 0
	// means unlimited. Exceeding it is a protocol violation mapped to
	// status 1009, independent of the unrelated outbound fragmentation
	// threshold the writer uses.
	maxInboundFrame uint64

	events ParserEvents

	hdr Header

	extLenBuf  [8]byte
	extLenGot  int
	extLenWant int

	remaining  uint64
	controlBuf []byte
}

func newParser(maxInboundFrame uint64, events ParserEvents) *parser {
	return &parser{state: psFirstByte, maxInboundFrame: maxInboundFrame, events: events}
}

// State reports the parser's current diagnostic state.
func (p *parser) State() string { return parseStateToString(p.state) }

// Feed drives the state machine over data, emitting events through p.events
// as frames and chunks complete. It returns the first protocol error
// encountered, if any; the caller owns deciding what close status and
// teardown follow.
func (p *parser) Feed(data []byte) error {
	for len(data) > 0 {
		switch p.state {
		case psFirstByte:
			b := data[0]
			data = data[1:]

			p.hdr = Header{
				Fin:    b&0x80 != 0,
				Opcode: Opcode(b & 0x0F),
			}
			p.hdr.RSV[0] = b&0x40 != 0
			p.hdr.RSV[1] = b&0x20 != 0
			p.hdr.RSV[2] = b&0x10 != 0

			if p.hdr.RSV[0] || p.hdr.RSV[1] || p.hdr.RSV[2] {
				return &ProtocolError{Status: CloseProtocolError, Reason: "nonzero RSV bit"}
			}
			if p.hdr.Opcode.IsReserved() {
				return &ProtocolError{Status: CloseProtocolError, Reason: "reserved opcode " + p.hdr.Opcode.String()}
			}
			if p.hdr.Opcode.IsControl() && !p.hdr.Fin {
				return &ProtocolError{Status: CloseProtocolError, Reason: "fragmented control frame"}
			}
			p.state = psSecondByte

		case psSecondByte:
			b := data[0]
			data = data[1:]

			p.hdr.Masked = b&0x80 != 0
			if p.hdr.Masked {
				return &ProtocolError{Status: CloseProtocolError, Reason: "frame from server is masked"}
			}

			lenField := b & 0x7F
			switch {
			case lenField <= 125:
				p.hdr.PayloadLen = uint64(lenField)
				if err := p.enterPayload(); err != nil {
					return err
				}
			case lenField == 126:
				p.extLenGot, p.extLenWant = 0, 2
				p.state = psExtLen16
			default:
				p.extLenGot, p.extLenWant = 0, 8
				p.state = psExtLen64
			}

		case psExtLen16, psExtLen64:
			n := copy(p.extLenBuf[p.extLenGot:p.extLenWant], data)
			p.extLenGot += n
			data = data[n:]

			if p.extLenGot < p.extLenWant {
				break
			}
			if p.state == psExtLen16 {
				p.hdr.PayloadLen = uint64(binary.BigEndian.Uint16(p.extLenBuf[:2]))
			} else {
				raw := binary.BigEndian.Uint64(p.extLenBuf[:8])
				if raw&(1<<63) != 0 {
					return &ProtocolError{Status: CloseProtocolError, Reason: "64-bit extended length has reserved high bit set"}
				}
				p.hdr.PayloadLen = raw
			}
			if err := p.enterPayload(); err != nil {
				return err
			}

		case psPayload:
			n := p.remaining
			if n > uint64(len(data)) {
				n = uint64(len(data))
			}
			chunk := data[:n]
			data = data[n:]
			p.remaining -= n

			if p.hdr.Opcode.IsControl() {
				p.controlBuf = append(p.controlBuf, chunk...)
			} else if len(chunk) > 0 && p.events.PayloadChunk != nil {
				if err := p.events.PayloadChunk(p.hdr, chunk); err != nil {
					return err
				}
			}

			if p.remaining == 0 {
				if err := p.finishFrame(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *parser) enterPayload() error {
	if p.maxInboundFrame != 0 && p.hdr.PayloadLen > p.maxInboundFrame {
		return &ProtocolError{Status: CloseMessageTooBig, Reason: "frame exceeds configured maximum size"}
	}
	if p.hdr.Opcode.IsControl() && p.hdr.PayloadLen > controlMaxPayload {
		return &ProtocolError{Status: CloseProtocolError, Reason: "control frame payload exceeds 125 bytes"}
	}
	if p.events.HeaderReady != nil {
		if err := p.events.HeaderReady(p.hdr); err != nil {
			return err
		}
	}

	p.remaining = p.hdr.PayloadLen
	p.controlBuf = p.controlBuf[:0]
	p.state = psPayload

	if p.remaining == 0 {
		return p.finishFrame()
	}
	return nil
}

func (p *parser) finishFrame() error {
	if p.hdr.Opcode.IsControl() && p.events.PayloadChunk != nil {
		if err := p.events.PayloadChunk(p.hdr, p.controlBuf); err != nil {
			return err
		}
	}
	p.controlBuf = nil

	if p.events.FrameEnd != nil {
		if err := p.events.FrameEnd(p.hdr); err != nil {
			return err
		}
	}
	p.state = psFirstByte
	return nil
}
