package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"
)

// Transport is the byte-transport collaborator the engine consumes: a
// socket abstraction providing reads, writes and read/write deadlines,
// per section 1's "out of scope: the byte-transport layer" boundary. TLS
// is applied by DialTCP when it builds one; timers are not part of it. The engine never dials or reads raw
// sockets itself; conn.go drives one of these per connection.
type Transport interface {
	// Read returns whatever bytes are currently available without
	// blocking; io.EOF signals a clean peer close, any other error a
	// transport failure.
	Read(buf []byte) (n int, err error)

	// Write writes b, blocking only as long as the underlying socket
	// buffer requires.
	Write(b []byte) (n int, err error)

	Close() error

	// SetReadDeadline bounds how long the next Read may block, letting
	// the connection's pump poll without blocking the engine thread
	// indefinitely. A zero time.Time disables the deadline.
	SetReadDeadline(t time.Time) error

	// SetWriteDeadline bounds how long the next Write may block, used to
	// detect an idle-send timeout when the peer stops draining its
	// receive buffer. A zero time.Time disables the deadline.
	SetWriteDeadline(t time.Time) error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// netTransport adapts a net.Conn (optionally TLS-wrapped) to Transport.
// It is the only Transport implementation this module ships; embedding
// applications may supply their own for tests or alternate I/O stacks.
type netTransport struct {
	conn net.Conn
}

// DialTCP connects to addr and wraps the resulting net.Conn as a
// Transport, optionally upgrading to TLS per mode. Host resolution is
// done as an explicit step ahead of the TCP connect so a failure there
// is reported as StageDNS rather than folded into StageConnect.
func DialTCP(addr string, mode TLSMode, tlsConfig *tls.Config, timeout time.Duration) (Transport, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &TransportError{Stage: StageDNS, Err: err}
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ips, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, &TransportError{Stage: StageDNS, Err: err}
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ips[0], port))
	if err != nil {
		return nil, &TransportError{Stage: StageConnect, Err: err}
	}

	if mode == TLSOff {
		return &netTransport{conn: conn}, nil
	}

	cfg := tlsConfig
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if mode == TLSAllowSelfSigned {
		cfg.InsecureSkipVerify = true
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, &TransportError{Stage: StageTLS, Err: err}
	}
	return &netTransport{conn: tlsConn}, nil
}

func (t *netTransport) Read(buf []byte) (int, error) {
	n, err := t.conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &TransportError{Stage: StageIO, Err: err}
	}
	return n, err
}

func (t *netTransport) Write(b []byte) (int, error) {
	n, err := t.conn.Write(b)
	if err != nil {
		return n, &TransportError{Stage: StageIO, Err: err}
	}
	return n, nil
}

func (t *netTransport) Close() error { return t.conn.Close() }

func (t *netTransport) SetReadDeadline(tm time.Time) error { return t.conn.SetReadDeadline(tm) }

func (t *netTransport) SetWriteDeadline(tm time.Time) error { return t.conn.SetWriteDeadline(tm) }

func (t *netTransport) LocalAddr() net.Addr  { return t.conn.LocalAddr() }
func (t *netTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
