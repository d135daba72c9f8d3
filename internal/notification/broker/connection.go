package broker

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"famlink/pkg/domain"
)

// CloseReason records why a connection left the registry.
type CloseReason string

const (
	ReasonCompleted CloseReason = "completed"
	ReasonTimedOut  CloseReason = "timed_out"
	ReasonErrored   CloseReason = "errored"
)

// Event is one named payload queued for a live connection.
type Event struct {
	Name string
	Data []byte
}

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("connection event buffer full")
)

// eventBuffer bounds how far a consumer may fall behind before the
// connection is treated as dead.
const eventBuffer = 16

// Connection is one live push channel to a single client instance (one tab
// or device) of one owner. The registry owns its lifecycle exclusively:
// created by Subscribe, removed on completion, timeout, or error, never
// reused after closing.
type Connection struct {
	id    uuid.UUID
	owner domain.UserID

	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	reason    CloseReason
	expiry    *time.Timer
}

func newConnection(owner domain.UserID) *Connection {
	return &Connection{
		id:     uuid.New(),
		owner:  owner,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// ID identifies the connection within its owner's set.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// Owner returns the user this connection belongs to.
func (c *Connection) Owner() domain.UserID {
	return c.owner
}

// Events yields queued events until the connection closes.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection reaches a terminal state. The streaming
// handler must return once this fires.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Reason reports why the connection closed; empty while still open.
func (c *Connection) Reason() CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// push queues an event without blocking. A full buffer means the consumer
// stopped draining; the caller treats that the same as a dead socket.
func (c *Connection) push(ev Event) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSlowConsumer
	}
}

// close transitions the connection to a terminal state. Idempotent; the
// first reason wins.
func (c *Connection) close(reason CloseReason) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		if c.expiry != nil {
			c.expiry.Stop()
		}
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Connection) setExpiry(t *time.Timer) {
	c.mu.Lock()
	c.expiry = t
	c.mu.Unlock()
}
