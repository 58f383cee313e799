package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BaseContext owns zero or more Connections and runs their event loop,
// mirroring Design Note "Opaque handle types → owned values": a
// Connection stores its own id and a non-owning back-reference to the
// *BaseContext it belongs to, so ownership stays acyclic even though
// both sides hold pointers.
type BaseContext struct {
	Logger *logrus.Logger

	mu    sync.Mutex
	conns map[uuid.UUID]*Connection

	marshal func(func())
	quit    chan struct{}
	quitted bool
}

// NewBaseContext constructs an internal-loop BaseContext: Service and
// ServiceBlocking drive connections directly on the calling goroutine.
func NewBaseContext() *BaseContext {
	b := &BaseContext{
		Logger: logrus.StandardLogger(),
		conns:  make(map[uuid.UUID]*Connection),
		quit:   make(chan struct{}),
	}
	b.marshal = func(fn func()) { fn() }
	return b
}

// NewExternalLoopContext constructs a BaseContext in external-loop mode:
// marshal re-dispatches a closure onto the engine thread the caller
// designates, collapsing the source's three marshalling callbacks
// (read/write/timer) into the single function Design Note
// "External-loop marshalling → message passing" describes.
func NewExternalLoopContext(marshal func(func())) *BaseContext {
	b := &BaseContext{
		Logger: logrus.StandardLogger(),
		conns:  make(map[uuid.UUID]*Connection),
		quit:   make(chan struct{}),
	}
	b.marshal = marshal
	return b
}

// NewConnection creates a Connection owned by b, configured with opts
// and events. The connection starts in IDLE; call Connect to begin.
func (b *BaseContext) NewConnection(opts Options, events Events) *Connection {
	c := newConnection(b, opts.WithDefaults(), events)

	b.mu.Lock()
	b.conns[c.id] = c
	b.mu.Unlock()
	return c
}

// Lookup returns the connection with the given id, if b still owns it.
func (b *BaseContext) Lookup(id uuid.UUID) (*Connection, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conns[id]
	return c, ok
}

func (b *BaseContext) forget(id uuid.UUID) {
	b.mu.Lock()
	delete(b.conns, id)
	b.mu.Unlock()
}

// Service runs a single non-blocking iteration of every owned
// connection's I/O step.
func (b *BaseContext) Service() {
	b.mu.Lock()
	conns := make([]*Connection, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.pump()
	}
}

// ServiceBlocking runs Service in a loop until Quit is called. Each
// iteration sleeps briefly when idle rather than spinning, since this
// engine has no native readiness notification of its own — section 1
// leaves the actual event-loop primitives to the transport.
func (b *BaseContext) ServiceBlocking() {
	for {
		select {
		case <-b.quit:
			return
		default:
			b.Service()
			time.Sleep(time.Millisecond)
		}
	}
}

// Quit stops ServiceBlocking. Safe to call once; further calls are a
// no-op.
func (b *BaseContext) Quit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quitted {
		return
	}
	b.quitted = true
	close(b.quit)
}

// QuitDelay schedules Quit after d.
func (b *BaseContext) QuitDelay(d time.Duration) {
	time.AfterFunc(d, b.Quit)
}
