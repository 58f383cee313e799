package ws

import "time"

// SendMessage sends a complete text (isBinary=false) or binary message,
// fragmenting per Options.MaxFrameSize. It works the same whichever
// inbound delivery mode Options.StreamMode selects.
func (c *Connection) SendMessage(payload []byte, isBinary bool) error {
	if c.state != StateOpen {
		return ErrConnectionClosed
	}
	return c.writer.SendMessage(payload, isBinary)
}

// BeginMessage, BeginFrame, SendFrameData and EndMessage expose the
// writer's streaming quartet; like SendMessage, they do not depend on
// Options.StreamMode.
func (c *Connection) BeginMessage(isBinary bool) error {
	if c.state != StateOpen {
		return ErrConnectionClosed
	}
	return c.writer.BeginMessage(isBinary)
}

func (c *Connection) BeginFrame(length uint64, fin bool) error {
	return c.writer.BeginFrame(length, fin)
}

func (c *Connection) SendFrameData(data []byte) error {
	return c.writer.SendFrameData(data)
}

func (c *Connection) EndMessage() error {
	return c.writer.EndMessage()
}

// Ping sends a ping frame with the given payload and, if a nonzero
// Timeouts.Pong is configured, arms a timer that fires OnPongTimeout
// if no matching pong arrives in time.
func (c *Connection) Ping(payload []byte) error {
	if c.state != StateOpen {
		return ErrConnectionClosed
	}
	if err := c.control.SendPing(payload, time.Now()); err != nil {
		return err
	}
	if c.opts.Timeouts.Pong > 0 {
		time.AfterFunc(c.opts.Timeouts.Pong, func() {
			c.base.marshal(c.control.PongTimeoutFired)
		})
	}
	return nil
}

// Pong sends an unsolicited pong with the given payload.
func (c *Connection) Pong(payload []byte) error {
	if c.state != StateOpen {
		return ErrConnectionClosed
	}
	return c.control.SendPong(payload)
}
