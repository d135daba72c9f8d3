// Package broker maintains the process-wide map of live push connections per
// user and fans notification payloads out to them. Delivery here is best
// effort: the durable log, not this broker, is the source of truth a client
// can re-poll. The broker is correct only within a single process; there is
// no cross-instance fan-out.
package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"famlink/internal/notification/metrics"
	"famlink/pkg/domain"
)

// DefaultLifetime bounds how long a connection may stay registered. Long
// enough to avoid re-subscribe thrash, short enough that clients that vanish
// without a clean close cannot accumulate.
const DefaultLifetime = 30 * time.Minute

// connectEvent is sent immediately on subscribe so intermediaries that treat
// an initially silent stream as failed see bytes right away.
const connectEventName = "connect"

var connectPayload = []byte(`{"status":"connected"}`)

// connSet holds one owner's connections as a copy-on-write slice. Reads
// (fan-out iteration) load the slice atomically without taking the lock;
// only structural mutation locks, so a send never blocks behind a subscribe.
type connSet struct {
	mu   sync.Mutex
	list atomic.Value // []*Connection
	dead bool         // set when emptied and removed from the registry map
}

func newConnSet() *connSet {
	s := &connSet{}
	s.list.Store([]*Connection{})
	return s
}

// snapshot returns the current connection list. Callers must not mutate it.
func (s *connSet) snapshot() []*Connection {
	return s.list.Load().([]*Connection)
}

// add registers c unless the set was already emptied and unlinked, in which
// case the caller must retry against a fresh set.
func (s *connSet) add(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return false
	}
	cur := s.snapshot()
	next := make([]*Connection, len(cur), len(cur)+1)
	copy(next, cur)
	s.list.Store(append(next, c))
	return true
}

// remove unlinks c and reports whether the set is now empty. Marking the set
// dead under the same lock closes the race with a concurrent add.
func (s *connSet) remove(c *Connection) (removed, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snapshot()
	next := make([]*Connection, 0, len(cur))
	for _, other := range cur {
		if other != c {
			next = append(next, other)
		}
	}
	removed = len(next) != len(cur)
	s.list.Store(next)
	if len(next) == 0 {
		s.dead = true
		return removed, true
	}
	return removed, false
}

// Registry is the singleton broker mapping each owner to the set of
// currently open live connections. Constructed once at process start; no
// teardown beyond process exit is required, though CloseAll supports
// graceful shutdown.
type Registry struct {
	owners   sync.Map // string owner -> *connSet
	lifetime time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Registry.
type Option func(*Registry)

// WithLifetime overrides the per-connection lifetime.
func WithLifetime(d time.Duration) Option {
	return func(r *Registry) { r.lifetime = d }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		lifetime: DefaultLifetime,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe allocates and registers a new connection for owner and queues
// the synthetic connect event on it before returning. If that first event
// cannot be queued the connection is torn down immediately and never left
// registered in a broken state.
func (r *Registry) Subscribe(owner domain.UserID) (*Connection, error) {
	conn := newConnection(owner)

	key := owner.String()
	for {
		val, _ := r.owners.LoadOrStore(key, newConnSet())
		if val.(*connSet).add(conn) {
			break
		}
		// The set was emptied and unlinked between Load and add; unlink it
		// ourselves if still present and retry with a fresh one.
		r.owners.CompareAndDelete(key, val)
	}

	if r.metrics != nil {
		r.metrics.ConnectionOpened()
	}

	conn.setExpiry(time.AfterFunc(r.lifetime, func() {
		r.drop(conn, ReasonTimedOut)
	}))

	if err := conn.push(Event{Name: connectEventName, Data: connectPayload}); err != nil {
		r.drop(conn, ReasonErrored)
		return nil, err
	}

	r.logger.Debug("connection subscribed",
		"owner", key,
		"conn_id", conn.ID().String(),
	)
	return conn, nil
}

// Send fans payload out to every live connection of owner. Absent owner is a
// no-op: the user simply is not live right now and the durable log already
// holds the record. Each write is independent; a failed connection never
// aborts delivery to the rest and is removed as part of handling the
// failure. Send never returns an error to its caller.
func (r *Registry) Send(ctx context.Context, owner domain.UserID, event string, payload any) {
	val, ok := r.owners.Load(owner.String())
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to encode push payload",
			"owner", owner.String(),
			"event", event,
			"error", err,
		)
		return
	}

	// Iterate a stable snapshot: the set may be concurrently mutated by a
	// subscribe or another connection's teardown. Failures are collected and
	// removed after the pass, never mid-iteration.
	set := val.(*connSet)
	var failed []*Connection
	for _, conn := range set.snapshot() {
		if err := conn.push(Event{Name: event, Data: data}); err != nil {
			failed = append(failed, conn)
			continue
		}
		if r.metrics != nil {
			r.metrics.PushDelivered()
		}
	}
	for _, conn := range failed {
		r.logger.WarnContext(ctx, "dropping dead connection during fan-out",
			"owner", owner.String(),
			"conn_id", conn.ID().String(),
		)
		if r.metrics != nil {
			r.metrics.PushFailed()
		}
		r.drop(conn, ReasonErrored)
	}
}

// Complete removes a connection whose client finished cleanly (navigated
// away, closed the tab).
func (r *Registry) Complete(conn *Connection) {
	r.drop(conn, ReasonCompleted)
}

// Fail removes a connection after a write error on its stream.
func (r *Registry) Fail(conn *Connection) {
	r.drop(conn, ReasonErrored)
}

// drop is the single teardown path: every terminal transition (completed,
// timed out, errored) must unlink the connection from its owner's set, or
// dead handles accumulate without bound.
func (r *Registry) drop(conn *Connection, reason CloseReason) {
	key := conn.Owner().String()
	if val, ok := r.owners.Load(key); ok {
		set := val.(*connSet)
		removed, empty := set.remove(conn)
		if empty {
			r.owners.CompareAndDelete(key, val)
		}
		if removed {
			if r.metrics != nil {
				r.metrics.ConnectionClosed()
			}
			r.logger.Debug("connection removed",
				"owner", key,
				"conn_id", conn.ID().String(),
				"reason", string(reason),
			)
		}
	}
	conn.close(reason)
}

// ConnCount reports how many live connections owner currently has.
func (r *Registry) ConnCount(owner domain.UserID) int {
	val, ok := r.owners.Load(owner.String())
	if !ok {
		return 0
	}
	return len(val.(*connSet).snapshot())
}

// CloseAll terminates every live connection as completed. Used on graceful
// shutdown.
func (r *Registry) CloseAll() {
	r.owners.Range(func(_, val any) bool {
		for _, conn := range val.(*connSet).snapshot() {
			r.drop(conn, ReasonCompleted)
		}
		return true
	})
}
