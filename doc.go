// Package ws implements a client-side RFC 6455 WebSocket protocol engine.
//
// It performs the opening HTTP upgrade handshake, frames and unframes
// text/binary messages (with continuation, ping, pong and close control
// frames), masks outbound payloads as RFC 6455 requires of clients, and
// drives an orderly closing handshake. The byte-transport layer (TCP,
// optional TLS, timers) is a collaborator consumed through the Transport
// interface in transport.go, not reimplemented here.
//
// A BaseContext owns zero or more Connections and runs their event loop,
// either internally (Service/ServiceBlocking) or marshalled onto an
// externally supplied loop (NewExternalLoopContext). Connection callbacks are
// delivered through a single Events table rather than one setter per
// event.
package ws
