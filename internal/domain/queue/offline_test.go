package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

func newMsg(to uuid.UUID, text string) *model.Message {
	return &model.Message{
		ID:        uuid.New(),
		To:        model.NewPeer(to, model.PeerUser),
		Text:      text,
		CreatedAt: time.Now().UnixMilli(),
	}
}

func TestEnqueueDrainFIFO(t *testing.T) {
	q := New(0)
	to := uuid.New()

	first := newMsg(to, "first")
	second := newMsg(to, "second")
	third := newMsg(to, "third")

	require.Nil(t, q.Enqueue(to, first))
	require.Nil(t, q.Enqueue(to, second))
	require.Nil(t, q.Enqueue(to, third))

	drained := q.DrainAll(to)
	require.Len(t, drained, 3)
	assert.Equal(t, "first", drained[0].Text)
	assert.Equal(t, "second", drained[1].Text)
	assert.Equal(t, "third", drained[2].Text)

	assert.Empty(t, q.DrainAll(to), "drain must remove the backlog")
}

func TestCapacityDropsOldest(t *testing.T) {
	q := New(2)
	to := uuid.New()

	oldest := newMsg(to, "oldest")
	require.Nil(t, q.Enqueue(to, oldest))
	require.Nil(t, q.Enqueue(to, newMsg(to, "kept-1")))

	dropped := q.Enqueue(to, newMsg(to, "kept-2"))
	require.NotNil(t, dropped)
	assert.Equal(t, oldest.ID, dropped.ID)

	drained := q.DrainAll(to)
	require.Len(t, drained, 2)
	assert.Equal(t, "kept-1", drained[0].Text)
	assert.Equal(t, "kept-2", drained[1].Text)
}

func TestQueuesAreIndependentPerRecipient(t *testing.T) {
	q := New(1)
	alice := uuid.New()
	bob := uuid.New()

	require.Nil(t, q.Enqueue(alice, newMsg(alice, "to alice")))
	require.Nil(t, q.Enqueue(bob, newMsg(bob, "to bob")), "capacity is per recipient")

	assert.Equal(t, 1, q.Len(alice))
	assert.Equal(t, 1, q.Len(bob))
}

func TestRequeuePreservesOrder(t *testing.T) {
	q := New(0)
	to := uuid.New()

	require.Nil(t, q.Enqueue(to, newMsg(to, "c")))
	q.Requeue(to, []*model.Message{newMsg(to, "a"), newMsg(to, "b")})

	drained := q.DrainAll(to)
	require.Len(t, drained, 3)
	assert.Equal(t, "a", drained[0].Text)
	assert.Equal(t, "b", drained[1].Text)
	assert.Equal(t, "c", drained[2].Text)
}

func TestExpireBefore(t *testing.T) {
	q := New(0)
	to := uuid.New()

	old := newMsg(to, "old")
	old.CreatedAt = time.Now().Add(-time.Hour).UnixMilli()
	fresh := newMsg(to, "fresh")

	require.Nil(t, q.Enqueue(to, old))
	require.Nil(t, q.Enqueue(to, fresh))

	expired := q.ExpireBefore(time.Now().Add(-time.Minute).UnixMilli())
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)

	remaining := q.DrainAll(to)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}

// A message enqueued concurrently with a drain must end up either in the
// drained batch or in the queue afterwards, never lost.
func TestConcurrentEnqueueDrainLosesNothing(t *testing.T) {
	q := New(0)
	to := uuid.New()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(to, newMsg(to, "m"))
			}
		}()
	}

	seen := make(map[uuid.UUID]struct{})
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		for _, msg := range q.DrainAll(to) {
			_, dup := seen[msg.ID]
			require.False(t, dup, "message drained twice")
			seen[msg.ID] = struct{}{}
		}
		select {
		case <-done:
			for _, msg := range q.DrainAll(to) {
				seen[msg.ID] = struct{}{}
			}
			require.Len(t, seen, producers*perProducer)
			return
		default:
		}
	}
}
