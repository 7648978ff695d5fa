package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

var (
	// ErrUnknownMessage is returned for transitions on untracked IDs.
	ErrUnknownMessage = errors.New("tracker: unknown message")
	// ErrAlreadyRouted is returned when a message identity already carries
	// a non-sending status; the router rejects the resubmission instead of
	// silently accepting a duplicate delivery.
	ErrAlreadyRouted = errors.New("tracker: message already routed")
)

// StateError reports a transition requested from a disallowed predecessor
// state. It is a reportable inconsistency, never applied and never fatal.
type StateError struct {
	MessageID uuid.UUID
	From      model.Status
	To        model.Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("tracker: illegal transition %s -> %s for message %s",
		e.From, e.To, e.MessageID)
}

// StatusRecord is a point-in-time view of a tracked message.
type StatusRecord struct {
	MessageID   uuid.UUID
	Sender      uuid.UUID
	Recipient   uuid.UUID
	Status      model.Status
	DeliveredAt int64
	ReadAt      int64
	UpdatedAt   int64
}

const trackerShards = 16

// Tracker owns the in-memory delivery status of every in-flight message.
// Each transition is a compare-and-swap keyed by message identity under a
// sharded lock, so transitions for one message are linearizable while
// unrelated messages never contend.
//
// The tracker is authoritative; the durable store is a best-effort mirror
// maintained by the router.
type Tracker struct {
	shards [trackerShards]trackerShard
}

type trackerShard struct {
	mu      sync.Mutex
	records map[uuid.UUID]*StatusRecord
}

func NewTracker() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i].records = make(map[uuid.UUID]*StatusRecord)
	}
	return t
}

func (t *Tracker) shardFor(id uuid.UUID) *trackerShard {
	return &t.shards[id[0]%trackerShards]
}

// Begin registers a message in the sending state. A message already on
// record past sending is rejected with ErrAlreadyRouted.
func (t *Tracker) Begin(msg *model.Message) error {
	s := t.shardFor(msg.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[msg.ID]; ok && rec.Status != model.StatusSending {
		return ErrAlreadyRouted
	}
	s.records[msg.ID] = &StatusRecord{
		MessageID: msg.ID,
		Sender:    msg.From.ID,
		Recipient: msg.To.ID,
		Status:    model.StatusSending,
		UpdatedAt: time.Now().UnixMilli(),
	}
	return nil
}

// Advance moves a message to next if the transition table allows it from
// the current state. The returned record reflects the applied transition.
func (t *Tracker) Advance(id uuid.UUID, next model.Status) (StatusRecord, error) {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return StatusRecord{}, ErrUnknownMessage
	}
	if !rec.Status.CanAdvance(next) {
		return *rec, &StateError{MessageID: id, From: rec.Status, To: next}
	}

	now := time.Now().UnixMilli()
	rec.Status = next
	rec.UpdatedAt = now
	switch next {
	case model.StatusDelivered:
		rec.DeliveredAt = now
	case model.StatusRead:
		rec.ReadAt = now
	}
	return *rec, nil
}

// Get returns the current record for a message, if tracked.
func (t *Tracker) Get(id uuid.UUID) (StatusRecord, bool) {
	s := t.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return StatusRecord{}, false
	}
	return *rec, true
}

// PruneTerminal drops records that reached a terminal state before cutoff
// (unix millis). Keeping them around briefly preserves the duplicate-route
// guard; dropping them eventually bounds memory.
func (t *Tracker) PruneTerminal(cutoff int64) int {
	pruned := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for id, rec := range s.records {
			if rec.Status.Terminal() && rec.UpdatedAt < cutoff {
				delete(s.records, id)
				pruned++
			}
		}
		s.mu.Unlock()
	}
	return pruned
}
