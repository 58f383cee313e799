package ws

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport backed by a byte slice, letting
// conn.go's pump() and WriteFrame() be exercised without a real socket.
type fakeTransport struct {
	mu     sync.Mutex
	inbox  []byte
	writes [][]byte
	closed bool
}

func (f *fakeTransport) feed(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, b...)
}

func (f *fakeTransport) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbox) == 0 {
		return 0, &net.OpError{Op: "read", Err: timeoutErr{}}
	}
	n := copy(buf, f.inbox)
	f.inbox = f.inbox[n:]
	return n, nil
}

func (f *fakeTransport) Write(b []byte) (int, error) {
	f.mu.Lock()
	f.writes = append(f.writes, append([]byte(nil), b...))
	f.mu.Unlock()
	return len(b), nil
}
func (f *fakeTransport) Close() error                     { f.closed = true; return nil }
func (f *fakeTransport) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeTransport) LocalAddr() net.Addr              { return nil }
func (f *fakeTransport) RemoteAddr() net.Addr             { return nil }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// openConnection builds a Connection already in StateOpen, bypassing
// Connect's dial+handshake, wired to a fakeTransport the test drives
// directly — the unit-level equivalent of a completed handshake.
func openConnection(events Events) (*Connection, *fakeTransport) {
	base := NewBaseContext()
	c := base.NewConnection(Options{}.WithDefaults(), events)
	ft := &fakeTransport{}
	c.transport = ft
	c.state = StateOpen
	return c, ft
}

// TestConnectionScenarioS1 matches scenario S1: a single text "Hello"
// frame from the server is delivered through OnMessage unmasked.
func TestConnectionScenarioS1(t *testing.T) {
	var got []byte
	var binary bool
	c, ft := openConnection(Events{
		OnMessage: func(c *Connection, payload []byte, isBinary bool) {
			got = payload
			binary = isBinary
		},
	})

	frame, err := EncodeHeader(nil, Header{Fin: true, Opcode: OpText, PayloadLen: 5})
	require.NoError(t, err)
	frame = append(frame, "Hello"...)
	ft.feed(frame)

	c.pump()

	assert.Equal(t, "Hello", string(got))
	assert.False(t, binary)
}

// TestConnectionScenarioS3 matches scenario S3: a server ping is
// answered by an exact-payload pong via the default handler.
func TestConnectionScenarioS3(t *testing.T) {
	c, ft := openConnection(Events{})

	frame, err := EncodeHeader(nil, Header{Fin: true, Opcode: OpPing, PayloadLen: 3})
	require.NoError(t, err)
	frame = append(frame, "abc"...)
	ft.feed(frame)

	c.pump()

	assert.False(t, c.control.HasPendingPing())

	require.Len(t, ft.writes, 2)
	h, n, ok, err := DecodeHeader(ft.writes[0])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, n, len(ft.writes[0]))
	assert.Equal(t, OpPong, h.Opcode)

	payload := append([]byte(nil), ft.writes[1]...)
	MaskXOR(h.MaskKey, payload)
	assert.Equal(t, "abc", string(payload))
}

// TestConnectionScenarioS6 matches scenario S6: a ping with no reply
// fires OnPongTimeout exactly once after the configured timeout.
func TestConnectionScenarioS6(t *testing.T) {
	var fired int
	var mu sync.Mutex
	c, _ := openConnection(Events{
		OnPongTimeout: func(c *Connection) {
			mu.Lock()
			fired++
			mu.Unlock()
		},
	})
	c.opts.Timeouts.Pong = 20 * time.Millisecond

	require.NoError(t, c.Ping([]byte("x")))

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired)
}

// TestConnectionClosingTransitionsOnEOF checks that an EOF with no
// close frame exchanged transitions straight to CLOSED with 1006,
// supplemented feature 4.
func TestConnectionClosingTransitionsOnEOF(t *testing.T) {
	var status CloseStatus
	var fired bool
	c, ft := openConnection(Events{
		OnClose: func(c *Connection, s CloseStatus, reason string) {
			fired = true
			status = s
		},
	})
	ft.mu.Lock()
	ft.inbox = nil
	ft.mu.Unlock()

	// Swap in an always-EOF transport to simulate the peer closing the
	// TCP connection without a close frame.
	c.transport = eofTransport{}
	c.pump()

	require.True(t, fired)
	assert.Equal(t, CloseAbnormal, status)
	assert.Equal(t, StateClosed, c.state)
}

type eofTransport struct{}

func (eofTransport) Read([]byte) (int, error)          { return 0, io.EOF }
func (eofTransport) SetReadDeadline(time.Time) error   { return nil }
func (eofTransport) SetWriteDeadline(time.Time) error  { return nil }
func (eofTransport) Write(b []byte) (int, error)       { return len(b), nil }
func (eofTransport) Close() error                      { return nil }
func (eofTransport) LocalAddr() net.Addr               { return nil }
func (eofTransport) RemoteAddr() net.Addr              { return nil }

// TestConnectionLocalCloseScenarioS4 matches scenario S4's local half:
// InitiateClose sends the close frame and moves the connection to
// CLOSING while it waits out the grace timer for the peer's TCP close.
func TestConnectionLocalCloseScenarioS4(t *testing.T) {
	c, _ := openConnection(Events{})
	require.NoError(t, c.Close(CloseGoingAway, "bye"))
	assert.Equal(t, StateClosing, c.state)
	assert.True(t, c.control.LocalCloseSent())
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
}

// TestConnectionReadRateThrottlesParse checks that bytes held back by an
// exhausted read bucket are retried rather than fed to the parser, so a
// single undersized Allow call can't let a whole frame through.
func TestConnectionReadRateThrottlesParse(t *testing.T) {
	var got []byte
	c, ft := openConnection(Events{
		OnMessage: func(c *Connection, payload []byte, isBinary bool) {
			got = payload
		},
	})
	c.readBucket = newTokenBucket(1, 0, time.Now())

	frame, err := EncodeHeader(nil, Header{Fin: true, Opcode: OpText, PayloadLen: 5})
	require.NoError(t, err)
	frame = append(frame, "Hello"...)
	ft.feed(frame)

	c.pump()
	assert.Nil(t, got, "starved bucket must not let pump feed the parser")
	require.NotEmpty(t, c.readPending)

	c.readBucket = nil
	c.pump()
	assert.Equal(t, "Hello", string(got))
}

// TestConnectionWriteRateGatesWriteFrame checks that WriteFrame consumes
// write-bucket tokens rather than ignoring RateLimits.WriteRate/WriteBurst.
func TestConnectionWriteRateGatesWriteFrame(t *testing.T) {
	c, ft := openConnection(Events{})
	c.writeBucket = newTokenBucket(1000, 1000, time.Now())

	require.NoError(t, c.WriteFrame([]byte("header"), []byte("payload")))
	require.Len(t, ft.writes, 2)
	assert.Less(t, c.writeBucket.tokens, 1000.0)
}

// TestConnectionRecvTimeoutFiresAndCloses matches the idle-recv half of
// section 4.8's timer set: no bytes within Timeouts.Recv fires
// OnRecvTimeout and aborts the connection.
func TestConnectionRecvTimeoutFiresAndCloses(t *testing.T) {
	var fired bool
	c, ft := openConnection(Events{
		OnRecvTimeout: func(c *Connection) { fired = true },
	})
	_ = ft
	c.opts.Timeouts.Recv = 10 * time.Millisecond
	c.lastRecvAt = time.Now().Add(-time.Hour)

	c.pump()

	assert.True(t, fired)
	assert.Equal(t, StateClosed, c.state)
}
