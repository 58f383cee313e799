package main

import (
	"fmt"
	"time"

	ws "github.com/cmz2012/gows"
)

func main() {
	opts := ws.Options{}.WithDefaults()
	events := ws.Events{
		OnConnect: func(c *ws.Connection) {
			fmt.Println("connected, subprotocol:", c.Subprotocol())
			if err := c.WriteJSON(map[string]string{"hello": "world"}); err != nil {
				fmt.Println("write error:", err)
			}
		},
		OnMessage: func(c *ws.Connection, payload []byte, binary bool) {
			fmt.Printf("received message (binary=%v): %s\n", binary, payload)
		},
		OnClose: func(c *ws.Connection, status ws.CloseStatus, reason string) {
			fmt.Println("closed:", status, reason)
		},
	}

	base, _, err := ws.Dial("ws://localhost:12345/echo", opts, events)
	if err != nil {
		fmt.Println("connect error:", err)
		return
	}

	base.QuitDelay(5 * time.Second)
	base.ServiceBlocking()
}
