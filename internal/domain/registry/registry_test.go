package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

func newTestConn(t *testing.T, userID uuid.UUID) Connector {
	t.Helper()
	conn := NewConnector(context.Background(), userID, 16)
	t.Cleanup(conn.Close)
	return conn
}

func TestRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	userID := uuid.New()
	conn := newTestConn(t, userID)

	reg.Register(conn)

	got, ok := reg.Lookup(userID)
	require.True(t, ok)
	assert.Equal(t, conn.GetID(), got.GetID())
	assert.True(t, reg.IsConnected(userID))

	_, ok = reg.Lookup(uuid.New())
	assert.False(t, ok, "absence means offline")
}

func TestRegisterSupersedes(t *testing.T) {
	reg := NewRegistry()
	userID := uuid.New()

	old := newTestConn(t, userID)
	reg.Register(old)

	fresh := newTestConn(t, userID)
	reg.Register(fresh)

	// Exactly one entry per identity, pointing at the newest handle.
	got, ok := reg.Lookup(userID)
	require.True(t, ok)
	assert.Equal(t, fresh.GetID(), got.GetID())
	assert.Len(t, reg.Snapshot(), 1)

	// The orphaned handle stops receiving routed traffic.
	select {
	case <-old.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded handle was not closed")
	}
	assert.False(t, old.Send(model.NewEvent(userID, model.EventTyping, model.PriorityLow, nil), 10*time.Millisecond))
}

func TestRemoveIsMatchGuarded(t *testing.T) {
	reg := NewRegistry()
	userID := uuid.New()

	old := newTestConn(t, userID)
	reg.Register(old)
	fresh := newTestConn(t, userID)
	reg.Register(fresh)

	// Removing the superseded handle must not evict its successor.
	assert.False(t, reg.Remove(userID, old.GetID()))
	assert.True(t, reg.IsConnected(userID))

	assert.True(t, reg.Remove(userID, fresh.GetID()))
	assert.False(t, reg.IsConnected(userID))
	assert.False(t, reg.Remove(userID, fresh.GetID()), "second remove is a no-op")
}

func TestSnapshot(t *testing.T) {
	reg := NewRegistry()
	alice, bob := uuid.New(), uuid.New()

	reg.Register(newTestConn(t, alice))
	reg.Register(newTestConn(t, bob))

	online := reg.Snapshot()
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, online)
}

func TestOnChangeNotifications(t *testing.T) {
	reg := NewRegistry()
	var changes atomic.Int64
	reg.OnChange(func() { changes.Add(1) })

	userID := uuid.New()
	conn := newTestConn(t, userID)

	reg.Register(conn)
	assert.Equal(t, int64(1), changes.Load())

	// A failed (stale) removal must not broadcast.
	reg.Remove(userID, uuid.New())
	assert.Equal(t, int64(1), changes.Load())

	reg.Remove(userID, conn.GetID())
	assert.Equal(t, int64(2), changes.Load())
}

func TestDeliver(t *testing.T) {
	reg := NewRegistry()
	userID := uuid.New()
	conn := newTestConn(t, userID)
	reg.Register(conn)

	ev := model.NewEvent(userID, model.EventTyping, model.PriorityLow, nil)
	require.True(t, reg.Deliver(ev))

	select {
	case got := <-conn.Recv():
		assert.Equal(t, ev.GetID(), got.GetID())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	miss := model.NewEvent(uuid.New(), model.EventTyping, model.PriorityLow, nil)
	assert.False(t, reg.Deliver(miss))
}

func TestConcurrentRegistrationSingleEntry(t *testing.T) {
	reg := NewRegistry()
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := NewConnector(context.Background(), userID, 4)
			reg.Register(conn)
		}()
	}
	wg.Wait()

	// For all identities, at most one entry exists at any instant.
	assert.Len(t, reg.Snapshot(), 1)
}

func TestShutdownClosesEverything(t *testing.T) {
	reg := NewRegistry()
	conn := newTestConn(t, uuid.New())
	reg.Register(conn)

	reg.Shutdown()
	assert.Empty(t, reg.Snapshot())
	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not closed on shutdown")
	}
}

func TestConnectorSendAfterClose(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 1)
	conn.Close()
	conn.Close() // idempotent

	ok := conn.Send(model.NewEvent(conn.GetUserID(), model.EventTyping, model.PriorityLow, nil), 10*time.Millisecond)
	assert.False(t, ok)
}

func TestConnectorBackpressureShedsLowPriority(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 1)
	defer conn.Close()

	low := model.NewEvent(conn.GetUserID(), model.EventTyping, model.PriorityLow, nil)
	high := model.NewEvent(conn.GetUserID(), model.EventMessage, model.PriorityHigh, nil)

	require.True(t, conn.Send(low, 10*time.Millisecond))
	// Buffer full: a second low-priority event is shed...
	assert.False(t, conn.Send(low, 10*time.Millisecond))
	// ...but a high-priority event evicts the queued low one.
	assert.True(t, conn.Send(high, 10*time.Millisecond))

	got := <-conn.Recv()
	assert.Equal(t, model.EventMessage, got.GetKind())
}

func presenceEvent(userID uuid.UUID, seq uint64) model.Eventer {
	return model.NewEvent(userID, model.EventPresence, model.PriorityNormal,
		model.PresencePayload{Seq: seq})
}

func presenceSeq(t *testing.T, conn Connector) uint64 {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		p, ok := ev.GetPayload().(model.PresencePayload)
		require.True(t, ok)
		return p.Seq
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return 0
	}
}

// A saturated send of an equal-priority event must be shed, never spliced
// into the queue ahead of earlier snapshots: a client that applies seq 2
// and then receives seq 1 would discard the newer state.
func TestConnectorBackpressureNeverReorders(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 2)
	defer conn.Close()

	require.True(t, conn.Send(presenceEvent(conn.GetUserID(), 1), 10*time.Millisecond))
	require.True(t, conn.Send(presenceEvent(conn.GetUserID(), 2), 10*time.Millisecond))
	assert.False(t, conn.Send(presenceEvent(conn.GetUserID(), 3), 10*time.Millisecond))

	assert.Equal(t, uint64(1), presenceSeq(t, conn))
	assert.Equal(t, uint64(2), presenceSeq(t, conn))
}

// Eviction for high-priority traffic drops the oldest queued event and
// keeps the survivors in their original order.
func TestConnectorEvictionKeepsRemainingOrder(t *testing.T) {
	conn := NewConnector(context.Background(), uuid.New(), 2)
	defer conn.Close()

	require.True(t, conn.Send(presenceEvent(conn.GetUserID(), 1), 10*time.Millisecond))
	require.True(t, conn.Send(presenceEvent(conn.GetUserID(), 2), 10*time.Millisecond))

	msg := model.NewEvent(conn.GetUserID(), model.EventMessage, model.PriorityHigh, nil)
	require.True(t, conn.Send(msg, 10*time.Millisecond))

	// Oldest snapshot evicted; the newer one still precedes the message.
	assert.Equal(t, uint64(2), presenceSeq(t, conn))
	got := <-conn.Recv()
	assert.Equal(t, model.EventMessage, got.GetKind())
}
