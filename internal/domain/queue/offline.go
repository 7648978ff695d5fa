// Package queue buffers messages addressed to users without a live
// connection, FIFO per recipient.
package queue

import (
	"sync"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

const shardCount = 16

// OfflineQueue holds per-recipient backlogs. Locking is sharded by
// recipient identity so unrelated recipients never contend.
//
// Capacity policy: a configured capacity > 0 bounds each backlog with
// drop-oldest; the dropped message is returned to the caller, which marks
// it failed and notifies its sender. Capacity 0 means unbounded.
type OfflineQueue struct {
	shards   [shardCount]shard
	capacity int
}

type shard struct {
	mu      sync.Mutex
	pending map[uuid.UUID][]*model.Message
}

func New(capacity int) *OfflineQueue {
	q := &OfflineQueue{capacity: capacity}
	for i := range q.shards {
		q.shards[i].pending = make(map[uuid.UUID][]*model.Message)
	}
	return q
}

func (q *OfflineQueue) shardFor(id uuid.UUID) *shard {
	return &q.shards[id[0]%shardCount]
}

// Enqueue appends msg to the recipient's backlog. When the backlog is at
// capacity the oldest entry is dropped and returned; nil otherwise.
func (q *OfflineQueue) Enqueue(to uuid.UUID, msg *model.Message) *model.Message {
	s := q.shardFor(to)
	s.mu.Lock()
	defer s.mu.Unlock()

	backlog := s.pending[to]
	var dropped *model.Message
	if q.capacity > 0 && len(backlog) >= q.capacity {
		dropped = backlog[0]
		backlog = backlog[1:]
	}
	s.pending[to] = append(backlog, msg)
	return dropped
}

// DrainAll atomically removes and returns the recipient's backlog in
// insertion order. A message enqueued concurrently ends up either in the
// returned batch or in the queue afterwards, never lost.
func (q *OfflineQueue) DrainAll(to uuid.UUID) []*model.Message {
	s := q.shardFor(to)
	s.mu.Lock()
	defer s.mu.Unlock()

	backlog := s.pending[to]
	delete(s.pending, to)
	return backlog
}

// Requeue puts messages back at the head of the recipient's backlog,
// preserving their order. Used when delivery of a drained batch is
// interrupted by the connection vanishing mid-flush.
func (q *OfflineQueue) Requeue(to uuid.UUID, msgs []*model.Message) {
	if len(msgs) == 0 {
		return
	}
	s := q.shardFor(to)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[to] = append(append([]*model.Message{}, msgs...), s.pending[to]...)
}

// ExpireBefore removes and returns every queued message created before
// cutoff (unix millis), across all recipients. The caller transitions them
// to failed.
func (q *OfflineQueue) ExpireBefore(cutoff int64) []*model.Message {
	var expired []*model.Message
	for i := range q.shards {
		s := &q.shards[i]
		s.mu.Lock()
		for to, backlog := range s.pending {
			kept := backlog[:0]
			for _, msg := range backlog {
				if msg.CreatedAt < cutoff {
					expired = append(expired, msg)
				} else {
					kept = append(kept, msg)
				}
			}
			if len(kept) == 0 {
				delete(s.pending, to)
			} else {
				s.pending[to] = kept
			}
		}
		s.mu.Unlock()
	}
	return expired
}

// Len reports the backlog size for a recipient.
func (q *OfflineQueue) Len(to uuid.UUID) int {
	s := q.shardFor(to)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[to])
}
