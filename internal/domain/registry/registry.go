/*
Package registry owns the identity → live connection mapping.

Key properties:
  - Exactly one entry per identity at any instant; a new registration from
    the same identity supersedes (never merges with) the previous handle,
    which is closed and stops receiving routed traffic.
  - Removal is match-guarded: a handle that was already superseded cannot
    evict its successor.
  - Lookups are lock-free via sync.Map, so routing two messages to two
    different recipients never serializes on a global mutex.
  - Every effective mutation of the online set notifies subscribers
    (the presence broadcaster).
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

// Registrar is the gateway for session management and event routing.
type Registrar interface {
	Register(conn Connector)
	Lookup(userID uuid.UUID) (Connector, bool)
	Remove(userID, connID uuid.UUID) bool
	IsConnected(userID uuid.UUID) bool
	Snapshot() []uuid.UUID
	Each(fn func(Connector))
	Deliver(ev model.Eventer) bool
	OnChange(fn func())
	Shutdown()
}

type registryConfig struct {
	sweepInterval time.Duration
	idleTimeout   time.Duration
	sendBuffer    int
}

// Registry implements Registrar. Optimized for read-heavy workloads:
// lookups dominate registrations by orders of magnitude.
type Registry struct {
	// entries stores map[uuid.UUID]Connector.
	entries sync.Map

	config registryConfig

	// subscribers are notified after any mutation that may have changed
	// the online set. Appended during wiring, read-only afterwards.
	subMu       sync.Mutex
	subscribers []func()
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		config: registryConfig{
			sweepInterval: 30 * time.Second,
			idleTimeout:   60 * time.Second,
			sendBuffer:    256,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendBuffer exposes the configured per-connection queue capacity so the
// service layer can size connectors consistently.
func (r *Registry) SendBuffer() int { return r.config.sendBuffer }

// Register installs conn as the single live entry for its identity.
// A previous handle for the same identity is orphaned and closed.
func (r *Registry) Register(conn Connector) {
	prev, loaded := r.entries.Swap(conn.GetUserID(), conn)
	if loaded {
		if old, ok := prev.(Connector); ok && old.GetID() != conn.GetID() {
			old.Close()
		}
	}
	r.notify()
}

// Lookup is a pure read; safe under concurrent registration and removal.
func (r *Registry) Lookup(userID uuid.UUID) (Connector, bool) {
	val, ok := r.entries.Load(userID)
	if !ok {
		return nil, false
	}
	conn, ok := val.(Connector)
	return conn, ok
}

func (r *Registry) IsConnected(userID uuid.UUID) bool {
	_, ok := r.entries.Load(userID)
	return ok
}

// Remove evicts the entry for userID only while it still holds the handle
// identified by connID. A registration that superseded the handle in the
// meantime is left untouched, and no presence notification fires.
func (r *Registry) Remove(userID, connID uuid.UUID) bool {
	val, ok := r.entries.Load(userID)
	if !ok {
		return false
	}
	conn, ok := val.(Connector)
	if !ok || conn.GetID() != connID {
		return false
	}
	if !r.entries.CompareAndDelete(userID, val) {
		// Lost the race with a concurrent supersede.
		return false
	}
	conn.Close()
	r.notify()
	return true
}

// Snapshot returns the current online identity set.
func (r *Registry) Snapshot() []uuid.UUID {
	var online []uuid.UUID
	r.entries.Range(func(key, _ any) bool {
		online = append(online, key.(uuid.UUID))
		return true
	})
	return online
}

// Each visits every live connection. The visited set is weakly consistent
// with concurrent mutation, which is all presence fan-out needs.
func (r *Registry) Each(fn func(Connector)) {
	r.entries.Range(func(_, val any) bool {
		if conn, ok := val.(Connector); ok {
			fn(conn)
		}
		return true
	})
}

// Deliver routes an event to its target user's live connection.
// Returns false on miss or overflow.
func (r *Registry) Deliver(ev model.Eventer) bool {
	conn, ok := r.Lookup(ev.GetUserID())
	if !ok {
		return false
	}
	return conn.Send(ev, 500*time.Millisecond)
}

// OnChange subscribes fn to online-set mutations. Wiring-time only.
func (r *Registry) OnChange(fn func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Registry) notify() {
	r.subMu.Lock()
	subs := r.subscribers
	r.subMu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Shutdown closes every live connection and empties the registry.
func (r *Registry) Shutdown() {
	r.entries.Range(func(key, val any) bool {
		if conn, ok := val.(Connector); ok {
			conn.Close()
		}
		r.entries.Delete(key)
		return true
	})
}
