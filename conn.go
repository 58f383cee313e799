package ws

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// connState is one of the six states section 3 defines.
type connState int32

const (
	StateIdle connState = iota
	StateConnecting
	StateHandshaking
	StateOpen
	StateClosing
	StateClosed
)

func (s connState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Connection is one WebSocket session: the transport, the frame
// parser/assembler/control/writer quartet wired together, and the
// section-3 state machine that mediates both directions. It carries a
// non-owning back-reference to the *BaseContext that owns it by id, per
// Design Note "Opaque handle types → owned values".
type Connection struct {
	id   uuid.UUID
	base *BaseContext

	opts   Options
	events Events

	state connState
	url   *url.URL

	transport    Transport
	handshakeKey string
	subprotocol  string

	parser      *parser
	assembler   *assembler
	control     *control
	writer      *writer
	readBucket  *tokenBucket
	writeBucket *tokenBucket
	readPending []byte

	lastRecvAt time.Time

	closeFired   bool
	closeGraceAt time.Time
}

func newConnection(base *BaseContext, opts Options, events Events) *Connection {
	c := &Connection{
		id:     uuid.New(),
		base:   base,
		opts:   opts,
		events: events,
		state:  StateIdle,
	}

	c.assembler = newAssembler(opts.StreamMode, opts.MaxMessageSize, AssemblerEvents{
		Message: func(payload []byte, binary bool) error {
			if c.events.OnMessage != nil {
				c.events.OnMessage(c, payload, binary)
			}
			return nil
		},
		FrameBegin: func(binary, fin bool) {
			if c.events.OnFrameBegin != nil {
				c.events.OnFrameBegin(c, binary, fin)
			}
		},
		FrameData: func(chunk []byte) {
			if c.events.OnFrameData != nil {
				c.events.OnFrameData(c, chunk)
			}
		},
		FrameEnd: func() {
			if c.events.OnFrameEnd != nil {
				c.events.OnFrameEnd(c)
			}
		},
	})

	c.parser = newParser(opts.MaxFrameSize, ParserEvents{
		HeaderReady: func(h Header) error {
			if h.Opcode.IsControl() {
				return nil
			}
			return c.assembler.HeaderReady(h)
		},
		PayloadChunk: func(h Header, chunk []byte) error {
			if h.Opcode.IsControl() {
				return c.handleControlFrame(h, chunk)
			}
			return c.assembler.PayloadChunk(h, chunk)
		},
		FrameEnd: func(h Header) error {
			if h.Opcode.IsControl() {
				return nil
			}
			return c.assembler.FrameEnd(h)
		},
	})

	// A nil ControlEvents.Ping lets the control protocol auto-pong, so it
	// is only wired when the caller supplied OnPing.
	var onPing func(payload []byte)
	if events.OnPing != nil {
		onPing = func(payload []byte) { c.events.OnPing(c, payload) }
	}

	c.writer = newWriter(c, opts.MaxFrameSize)
	c.control = newControl(c.writer, opts.Timeouts.Pong, ControlEvents{
		Ping: onPing,
		Pong: func(payload []byte) {
			if c.events.OnPong != nil {
				c.events.OnPong(c, payload)
			}
		},
		PongTimeout: func() {
			if c.events.OnPongTimeout != nil {
				c.events.OnPongTimeout(c)
			}
		},
	})

	return c
}

// ID returns the uuid BaseContext owns this connection by.
func (c *Connection) ID() uuid.UUID { return c.id }

// State reports the connection's current lifecycle state.
func (c *Connection) State() connState { return c.state }

// handleControlFrame dispatches a fully-buffered control frame payload
// (ping/pong/close) to the control protocol, translating its result
// into the close/teardown the connection state machine performs.
func (c *Connection) handleControlFrame(h Header, payload []byte) error {
	switch h.Opcode {
	case OpPing:
		return c.control.HandlePingFrame(payload)
	case OpPong:
		c.control.HandlePongFrame(payload)
		return nil
	case OpClose:
		status, reason, err := c.control.HandleCloseFrame(payload)
		if err != nil {
			return err
		}
		c.toClosing(status, reason)
		return nil
	}
	return nil
}

// Connect dials rawURL, performs the opening handshake, and on success
// transitions the connection all the way to OPEN, firing OnConnect.
// IDLE -> CONNECTING -> HANDSHAKING -> OPEN, matching section 4.8;
// Go client libraries in this pack (vitalvas-kasper's Dialer.Dial)
// likewise perform the whole handshake synchronously inside one call
// rather than as a sequence of transport-event callbacks.
func (c *Connection) Connect(rawURL string) error {
	if c.state != StateIdle {
		return errors.New("websocket: connection already used")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &HandshakeError{Reason: "invalid url: " + err.Error()}
	}
	c.url = u

	c.state = StateConnecting
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), defaultPort(u.Scheme))
	}
	if addr, err = normalizeHost(addr); err != nil {
		c.state = StateClosed
		c.fireClose(CloseAbnormal, err.Error())
		return err
	}

	tlsMode := c.opts.TLSMode
	if u.Scheme == "wss" && tlsMode == TLSOff {
		tlsMode = TLSOn
	}

	transport, err := DialTCP(addr, tlsMode, nil, c.opts.Timeouts.Connect)
	if err != nil {
		c.state = StateClosed
		if isTimeout(err) && c.events.OnConnectTimeout != nil {
			c.events.OnConnectTimeout(c)
		}
		c.fireClose(CloseAbnormal, err.Error())
		return err
	}
	c.transport = transport

	c.state = StateHandshaking
	if err := c.performHandshake(); err != nil {
		c.transport.Close()
		c.state = StateClosed
		c.fireClose(CloseProtocolError, err.Error())
		return err
	}

	c.state = StateOpen
	c.lastRecvAt = time.Now()
	if c.opts.RateLimits.ReadRate > 0 {
		c.readBucket = newTokenBucket(c.opts.RateLimits.ReadBurst, c.opts.RateLimits.ReadRate, time.Now())
	}
	if c.opts.RateLimits.WriteRate > 0 {
		c.writeBucket = newTokenBucket(c.opts.RateLimits.WriteBurst, c.opts.RateLimits.WriteRate, time.Now())
	}
	c.base.Logger.Debugf("connection %s open (subprotocol=%q)", c.id, c.subprotocol)
	if c.events.OnConnect != nil {
		c.events.OnConnect(c)
	}
	return nil
}

func (c *Connection) performHandshake() error {
	key, err := GenerateKey()
	if err != nil {
		c.base.Logger.Errorf("connection %s: generating handshake key: %v", c.id, err)
		return err
	}
	c.handshakeKey = key

	req, err := BuildRequest(c.opts, *c.url, key)
	if err != nil {
		c.base.Logger.Errorf("connection %s: building handshake request: %v", c.id, err)
		return err
	}
	if _, err := c.transport.Write(req); err != nil {
		c.base.Logger.Errorf("connection %s: writing handshake request: %v", c.id, err)
		return err
	}

	br := bufio.NewReader(transportReader{c.transport})
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		c.base.Logger.Errorf("connection %s: reading handshake response: %v", c.id, err)
		return &HandshakeError{Reason: "reading response: " + err.Error()}
	}
	defer resp.Body.Close()

	subprotocol, err := ValidateResponse(resp, key, c.opts.Subprotocols)
	if err != nil {
		c.base.Logger.Errorf("connection %s: validating handshake response: %v", c.id, err)
		return err
	}
	c.subprotocol = subprotocol
	c.base.Logger.Debugf("connection %s: handshake complete", c.id)
	return nil
}

// Subprotocol returns the negotiated subprotocol, or "" if none.
func (c *Connection) Subprotocol() string { return c.subprotocol }

// transportReader adapts a Transport to io.Reader for the duration of
// the opening handshake, when the engine has not yet switched the
// transport over to non-blocking polling via SetReadDeadline.
type transportReader struct {
	t Transport
}

func (r transportReader) Read(p []byte) (int, error) {
	return r.t.Read(p)
}

// pump runs one non-blocking I/O step: it reads whatever bytes are
// currently available and feeds them to the parser, and checks the
// close-grace timer. BaseContext.Service calls this for every owned
// connection once per iteration.
func (c *Connection) pump() {
	if c.state != StateOpen && c.state != StateClosing {
		return
	}

	c.checkCloseGrace()
	c.checkRecvTimeout()
	if c.state == StateClosed {
		return
	}

	if len(c.readPending) == 0 {
		_ = c.transport.SetReadDeadline(time.Now().Add(time.Millisecond))
		buf := make([]byte, 4096)
		n, err := c.transport.Read(buf)
		if n > 0 {
			c.readPending = append(c.readPending, buf[:n]...)
			c.lastRecvAt = time.Now()
		}
		if n == 0 {
			if err == nil || isTimeout(err) {
				return
			}
			if errors.Is(err, io.EOF) {
				if !c.control.PeerCloseReceived() {
					c.toClosed(CloseAbnormal, "connection closed without a close frame")
				} else {
					c.toClosed(c.control.peerCloseStatus, c.control.peerCloseReason)
				}
				return
			}
			if c.events.OnError != nil {
				c.events.OnError(c, err)
			}
			c.toClosed(CloseAbnormal, err.Error())
			return
		}
	}

	if len(c.readPending) == 0 {
		return
	}

	// Token-bucket throttling: bytes that don't fit the current budget
	// stay in readPending and are retried on the next pump, rather than
	// being fed to the parser regardless of the configured read rate.
	if c.readBucket != nil && !c.readBucket.Allow(time.Now(), len(c.readPending)) {
		return
	}

	pending := c.readPending
	c.readPending = nil
	if perr := c.parser.Feed(pending); perr != nil {
		c.failProtocol(perr)
	}
}

// checkRecvTimeout fires OnRecvTimeout and aborts the connection once no
// bytes have arrived for longer than Timeouts.Recv, per section 4.8's
// timer set.
func (c *Connection) checkRecvTimeout() {
	if c.opts.Timeouts.Recv <= 0 || c.lastRecvAt.IsZero() {
		return
	}
	if time.Since(c.lastRecvAt) <= c.opts.Timeouts.Recv {
		return
	}
	if c.events.OnRecvTimeout != nil {
		c.events.OnRecvTimeout(c)
	}
	c.toClosed(CloseAbnormal, "idle receive timeout")
}

func (c *Connection) failProtocol(err error) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		c.base.Logger.Debugf("connection %s: protocol error, closing %s: %s", c.id, pe.Status, pe.Reason)
		c.toClosing(pe.Status, pe.Reason)
		return
	}
	c.base.Logger.Errorf("connection %s: unhandled parse error: %v", c.id, err)
	c.toClosed(CloseAbnormal, err.Error())
}

// toClosing is fired by a local Close or an inbound close frame. It
// sends (or has already sent) the local close half and starts the
// close-grace timer; the peer's TCP-level close (observed as EOF in
// pump) completes the transition to CLOSED.
func (c *Connection) toClosing(status CloseStatus, reason string) {
	if c.state == StateClosing || c.state == StateClosed {
		return
	}
	c.state = StateClosing
	_ = c.control.InitiateClose(status, reason)
	c.closeGraceAt = time.Now().Add(c.opts.CloseGraceTimeout)
}

func (c *Connection) checkCloseGrace() {
	if c.state != StateClosing || c.closeGraceAt.IsZero() {
		return
	}
	if time.Now().After(c.closeGraceAt) {
		c.toClosed(CloseAbnormal, "timed out waiting for peer close")
	}
}

// toClosed moves an established connection to CLOSED and fires OnClose
// through fireClose. Connect's failure paths call fireClose directly;
// fireClose guarantees OnClose fires at most once per connection.
func (c *Connection) toClosed(status CloseStatus, reason string) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	c.base.Logger.Debugf("connection %s: closed, status=%s reason=%q", c.id, status, reason)
	if c.transport != nil {
		c.transport.Close()
	}
	c.base.forget(c.id)
	c.fireClose(status, reason)
}

func (c *Connection) fireClose(status CloseStatus, reason string) {
	if c.closeFired {
		return
	}
	c.closeFired = true
	if c.events.OnClose != nil {
		c.events.OnClose(c, status, reason)
	}
}

// Close requests a clean shutdown with the given status and reason, per
// section 4.7's close(status, reason).
func (c *Connection) Close(status CloseStatus, reason string) error {
	if c.state != StateOpen {
		return ErrNotOpen
	}
	c.toClosing(status, reason)
	return nil
}

// CloseImmediately tears the transport down without the close
// handshake, per section 4.7's close_immediately.
func (c *Connection) CloseImmediately(reason string) {
	c.toClosed(CloseAbnormal, reason)
}

// WriteFrame implements FrameSink for the writer: it writes a single
// already-masked wire frame to the transport.
func (c *Connection) WriteFrame(header []byte, payload []byte) error {
	if c.state != StateOpen && c.state != StateClosing {
		return ErrConnectionClosed
	}

	total := len(header) + len(payload)
	if c.writeBucket != nil {
		now := time.Now()
		if !c.writeBucket.Allow(now, total) {
			time.Sleep(c.writeBucket.Wait(now, total))
			c.writeBucket.Allow(time.Now(), total)
		}
	}

	if c.opts.Timeouts.Send > 0 {
		_ = c.transport.SetWriteDeadline(time.Now().Add(c.opts.Timeouts.Send))
		defer c.transport.SetWriteDeadline(time.Time{})
	}

	if _, err := c.transport.Write(header); err != nil {
		return c.handleWriteError(err)
	}
	if len(payload) > 0 {
		if _, err := c.transport.Write(payload); err != nil {
			return c.handleWriteError(err)
		}
	}
	if c.events.OnWrite != nil {
		c.events.OnWrite(c, total)
	}
	return nil
}

// handleWriteError fires OnSendTimeout and aborts the connection when a
// write fails because the peer stopped draining within Timeouts.Send,
// per section 4.8's timer set; any other write error is returned as-is
// for the caller to observe.
func (c *Connection) handleWriteError(err error) error {
	if isTimeout(err) {
		if c.events.OnSendTimeout != nil {
			c.events.OnSendTimeout(c)
		}
		c.toClosed(CloseAbnormal, "idle send timeout")
	}
	return err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
