package ws

// Events is the single capability table a Connection is constructed
// with: one function field per signal instead of the teacher's
// per-callback setter methods (SetPingHandle/SetPongHandle/...), per
// Design Note "Callback tables → events". Any field may be left nil;
// nil fields are simply not invoked, except OnPing, whose absence
// triggers the default auto-pong behavior described in section 4.7.
type Events struct {
	// OnConnect fires once, on HANDSHAKING -> OPEN.
	OnConnect func(c *Connection)

	// OnMessage fires in message-mode once a complete message has
	// been assembled. Never fires on a stream-mode connection.
	OnMessage func(c *Connection, payload []byte, binary bool)

	// OnFrameBegin/OnFrameData/OnFrameEnd fire in stream-mode, once per
	// frame rather than once per assembled message. Never fire on a
	// message-mode connection.
	OnFrameBegin func(c *Connection, binary bool, fin bool)
	OnFrameData  func(c *Connection, chunk []byte)
	OnFrameEnd   func(c *Connection)

	// OnPing fires for every received ping frame. If set, it suppresses
	// the default auto-pong — the handler is expected to call
	// (*Connection).Pong itself if it wants one sent.
	OnPing func(c *Connection, payload []byte)
	OnPong func(c *Connection, payload []byte)

	// OnClose fires exactly once per connection, on any transition to
	// CLOSED, with the effective status and reason.
	OnClose func(c *Connection, status CloseStatus, reason string)

	// OnWrite fires after each frame has been written to the transport,
	// with that frame's header-plus-payload byte count. A message sent as
	// several fragments fires it once per fragment, and control frames
	// fire it too; there is no separate whole-message completion signal.
	OnWrite func(c *Connection, bytesWritten int)

	// The four timers section 4.8 lists: pong (control.go, answering a
	// ping got no pong back), idle-recv/idle-send (conn.go's pump/
	// WriteFrame, no bytes moved within Timeouts.Recv/Send), and connect
	// (conn.go's Connect, DialTCP itself timed out).
	OnPongTimeout    func(c *Connection)
	OnRecvTimeout    func(c *Connection)
	OnSendTimeout    func(c *Connection)
	OnConnectTimeout func(c *Connection)

	// OnError fires for an error the connection cannot otherwise
	// attribute to a specific callback above: a transport read error
	// other than a timeout or EOF, just before the connection closes
	// with 1006.
	OnError func(c *Connection, err error)
}
