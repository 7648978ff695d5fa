package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-routing-service/internal/domain/model"
	"github.com/webitel/im-routing-service/internal/domain/registry"
)

func startBroadcaster(t *testing.T) (*Broadcaster, *registry.Registry) {
	t.Helper()
	reg := registry.NewRegistry()
	b := NewBroadcaster(reg, discardLogger())
	b.Start()
	t.Cleanup(func() {
		b.Stop()
		reg.Shutdown()
	})
	return b, reg
}

// awaitSnapshot drains presence events from conn until one satisfies ok,
// asserting that sequence numbers never go backwards along the way.
func awaitSnapshot(t *testing.T, conn registry.Connector, lastSeq *uint64, ok func(model.PresencePayload) bool) model.PresencePayload {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-conn.Recv():
			if ev.GetKind() != model.EventPresence {
				continue
			}
			p, cast := ev.GetPayload().(model.PresencePayload)
			require.True(t, cast)
			require.Greater(t, p.Seq, *lastSeq, "snapshot sequence regressed")
			*lastSeq = p.Seq
			if ok(p) {
				return p
			}
		case <-deadline:
			t.Fatal("expected presence snapshot never arrived")
		}
	}
}

func contains(online []uuid.UUID, id uuid.UUID) bool {
	for _, o := range online {
		if o == id {
			return true
		}
	}
	return false
}

func TestPresenceBroadcastOnRegisterAndRemove(t *testing.T) {
	_, reg := startBroadcaster(t)
	alice, bob := uuid.New(), uuid.New()

	aliceConn := registry.NewConnector(context.Background(), alice, 32)
	reg.Register(aliceConn)

	var seq uint64
	p := awaitSnapshot(t, aliceConn, &seq, func(p model.PresencePayload) bool {
		return contains(p.Online, alice)
	})
	assert.Len(t, p.Online, 1)

	bobConn := registry.NewConnector(context.Background(), bob, 32)
	reg.Register(bobConn)
	awaitSnapshot(t, aliceConn, &seq, func(p model.PresencePayload) bool {
		return contains(p.Online, alice) && contains(p.Online, bob)
	})

	reg.Remove(bob, bobConn.GetID())
	p = awaitSnapshot(t, aliceConn, &seq, func(p model.PresencePayload) bool {
		return !contains(p.Online, bob)
	})
	assert.Equal(t, []uuid.UUID{alice}, p.Online)
}

// Rapid churn may coalesce into fewer broadcasts, but the last snapshot a
// connection sees must reflect the final online set.
func TestPresenceCoalescesToFinalState(t *testing.T) {
	_, reg := startBroadcaster(t)

	observerID := uuid.New()
	observer := registry.NewConnector(context.Background(), observerID, 64)
	reg.Register(observer)

	const churn = 20
	stayed := make([]uuid.UUID, 0, churn/2)
	for i := 0; i < churn; i++ {
		id := uuid.New()
		conn := registry.NewConnector(context.Background(), id, 4)
		reg.Register(conn)
		if i%2 == 0 {
			reg.Remove(id, conn.GetID())
		} else {
			stayed = append(stayed, id)
		}
	}

	want := append([]uuid.UUID{observerID}, stayed...)
	var seq uint64
	p := awaitSnapshot(t, observer, &seq, func(p model.PresencePayload) bool {
		return len(p.Online) == len(want)
	})
	assert.ElementsMatch(t, want, p.Online)
}

func TestPresenceKickNeverBlocks(t *testing.T) {
	reg := registry.NewRegistry()
	b := NewBroadcaster(reg, discardLogger())
	// Loop not started: the kick channel fills after one signal.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Kick()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Kick blocked with a pending broadcast")
	}
}
