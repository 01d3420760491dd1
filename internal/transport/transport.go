// internal/transport/transport.go
package transport

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Transport delivers published messages to subscribed connections. Paths are
// hierarchical strings ("lobbies", "lobbies/{name}", "lobbies/{name}/{user}",
// ...); subscribers see every message published to their exact path.
type Transport interface {
	Publish(path string, msg interface{})
	SubscribeClient(c *Conn, path string, initial func() interface{})
	UnsubscribeClient(c *Conn, path string)
}

// Conn is one client connection's presence on the bus. Out is drained by the
// connection's write pump (websocket or test harness).
type Conn struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	UserName string
	ClientID uuid.UUID
	Out      chan interface{}

	Log *logrus.Logger
}

// NewConn builds a connection with a buffered outbox.
func NewConn(userID uuid.UUID, userName string, clientID uuid.UUID, log *logrus.Logger) *Conn {
	return &Conn{
		ID:       uuid.New(),
		UserID:   userID,
		UserName: userName,
		ClientID: clientID,
		Out:      make(chan interface{}, 16),
		Log:      log,
	}
}

// Write pushes a message onto the connection's outbox without blocking.
// A full or closed outbox drops the message; slow consumers resynchronize
// from the next init snapshot rather than stall the publisher.
func (c *Conn) Write(msg interface{}) {
	select {
	case c.Out <- msg:
	default:
		if c.Log != nil {
			c.Log.Warnf("transport: outbox full for conn %s (user %s), dropped message %T", c.ID, c.UserName, msg)
		}
	}
}

// Bus is the in-memory Transport. A single process hosts all lobbies, so the
// bus needs no external broker; the registry is its only publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[string]map[*Conn]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[*Conn]struct{})}
}

// Publish sends msg to every connection subscribed to path.
func (b *Bus) Publish(path string, msg interface{}) {
	b.mu.Lock()
	conns := make([]*Conn, 0, len(b.subs[path]))
	for c := range b.subs[path] {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.Write(msg)
	}
}

// SubscribeClient adds the connection to path and, if initial is non-nil,
// immediately delivers its snapshot to just that connection.
func (b *Bus) SubscribeClient(c *Conn, path string, initial func() interface{}) {
	b.mu.Lock()
	set, ok := b.subs[path]
	if !ok {
		set = make(map[*Conn]struct{})
		b.subs[path] = set
	}
	set[c] = struct{}{}
	b.mu.Unlock()

	if initial != nil {
		c.Write(initial())
	}
}

// UnsubscribeClient removes the connection from path. Unknown subscriptions
// are a no-op.
func (b *Bus) UnsubscribeClient(c *Conn, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[path]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(b.subs, path)
		}
	}
}
