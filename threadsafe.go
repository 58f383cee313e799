package ws

// SendMessageThreadsafe marshals a SendMessage call onto the engine
// thread via BaseContext's marshal function, the one place it is safe
// to call a Connection method from a goroutine other than the one
// driving Service/ServiceBlocking. In internal-loop mode (NewBaseContext)
// marshal runs the closure synchronously on the calling goroutine, so
// this still requires the caller to coordinate with Service itself; in
// external-loop mode (NewExternalLoopContext) it is genuinely safe,
// since the supplied marshal function is responsible for getting the
// closure onto the engine thread.
func (c *Connection) SendMessageThreadsafe(payload []byte, isBinary bool, done func(error)) {
	c.base.marshal(func() {
		err := c.SendMessage(payload, isBinary)
		if done != nil {
			done(err)
		}
	})
}

// CloseThreadsafe marshals a Close call onto the engine thread.
func (c *Connection) CloseThreadsafe(status CloseStatus, reason string, done func(error)) {
	c.base.marshal(func() {
		err := c.Close(status, reason)
		if done != nil {
			done(err)
		}
	})
}
