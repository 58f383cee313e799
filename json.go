package ws

import "github.com/sugawarayuuta/sonnet"

// WriteJSON marshals v with sonnet (a drop-in, faster encoding/json
// replacement) and sends it as a single text message.
func (c *Connection) WriteJSON(v any) error {
	b, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}
	return c.writer.SendMessage(b, false)
}

// ReadJSON is a convenience wrapper callers use from within OnMessage:
// it unmarshals a text message's payload into v.
func ReadJSON(payload []byte, v any) error {
	return sonnet.Unmarshal(payload, v)
}
