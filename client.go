package ws

// Dial is the common case: create a BaseContext, build a single
// Connection against opts/events, and run Connect against rawURL. The
// returned BaseContext still needs Service or ServiceBlocking driven
// somewhere for the connection's pump to run after the handshake.
func Dial(rawURL string, opts Options, events Events) (*BaseContext, *Connection, error) {
	base := NewBaseContext()
	conn := base.NewConnection(opts, events)
	if err := conn.Connect(rawURL); err != nil {
		return base, conn, err
	}
	return base, conn, nil
}
