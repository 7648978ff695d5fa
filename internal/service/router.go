package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
	"github.com/webitel/im-routing-service/internal/domain/queue"
	"github.com/webitel/im-routing-service/internal/domain/registry"
	"github.com/webitel/im-routing-service/internal/store"
)

// ErrNotRecipient is returned when a read acknowledgement arrives from an
// identity that is not the message's recipient.
var ErrNotRecipient = errors.New("router: reader is not the message recipient")

const sendTimeout = 500 * time.Millisecond

// Deliverer is the primary interface for transport handlers.
type Deliverer interface {
	// Subscribe attaches a fresh connection for userID, superseding any
	// previous one, and flushes the user's offline backlog to it.
	Subscribe(ctx context.Context, userID uuid.UUID) (registry.Connector, error)
	Unsubscribe(userID, connID uuid.UUID)

	// Route accepts a newly created message and advances it to delivered
	// (recipient online) or queued (recipient offline), emitting a status
	// receipt to the sender's live connection.
	Route(ctx context.Context, msg *model.Message) (model.Status, error)

	// MarkRead applies the recipient's read acknowledgement and notifies
	// the original sender.
	MarkRead(ctx context.Context, reader, messageID uuid.UUID) error

	// Typing relays a typing indicator to the recipient if online.
	// Indicators are never queued.
	Typing(from, to uuid.UUID, isTyping bool)
}

// EventPublisher re-publishes exportable events (delivery receipts) to the
// message bus for interested sibling services. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.Eventer) error
}

// Router orchestrates message delivery: registry lookups, live forwarding,
// offline queueing, status transitions and sender receipts.
type Router struct {
	registry  registry.Registrar
	offline   *queue.OfflineQueue
	tracker   *Tracker
	messages  store.MessageStore
	publisher EventPublisher
	logger    *slog.Logger

	maxQueuedAge time.Duration
}

func NewRouter(
	reg registry.Registrar,
	offline *queue.OfflineQueue,
	tracker *Tracker,
	messages store.MessageStore,
	logger *slog.Logger,
) *Router {
	return &Router{
		registry: reg,
		offline:  offline,
		tracker:  tracker,
		messages: messages,
		logger:   logger,
	}
}

// SetPublisher attaches the bus publisher. Wiring-time only; nil disables
// receipt export.
func (r *Router) SetPublisher(p EventPublisher) { r.publisher = p }

// SetMaxQueuedAge enables queued-message expiry during sweeps. Zero keeps
// the backlog age-unbounded.
func (r *Router) SetMaxQueuedAge(d time.Duration) { r.maxQueuedAge = d }

func (r *Router) Subscribe(ctx context.Context, userID uuid.UUID) (registry.Connector, error) {
	conn := registry.NewConnector(ctx, userID, r.sendBuffer())
	r.registry.Register(conn)
	r.flushBacklog(ctx, userID, conn)
	return conn, nil
}

func (r *Router) sendBuffer() int {
	if reg, ok := r.registry.(*registry.Registry); ok {
		return reg.SendBuffer()
	}
	return 256
}

func (r *Router) Unsubscribe(userID, connID uuid.UUID) {
	r.registry.Remove(userID, connID)
}

// Route performs delivery: track, mark sent, forward-or-enqueue.
// A forward that fails mid-route (connection vanished, a race with
// disconnect) falls through to the offline path instead of failing the
// whole operation.
func (r *Router) Route(ctx context.Context, msg *model.Message) (model.Status, error) {
	if msg.To.ID == uuid.Nil {
		return 0, fmt.Errorf("router: message without recipient")
	}

	// Messages born here (WS path) are persisted on creation; messages
	// arriving from sibling services carry an ID and are already stored.
	if msg.ID == uuid.Nil {
		if err := r.messages.Persist(ctx, msg); err != nil {
			msg.ID = uuid.New()
			r.logger.Warn("message store unavailable, continuing in-memory",
				"msg_id", msg.ID, "err", err)
		}
	}

	if err := r.tracker.Begin(msg); err != nil {
		return 0, err
	}
	msg.Status = model.StatusSending

	if _, err := r.advance(ctx, msg, model.StatusSent); err != nil {
		return 0, err
	}

	if conn, ok := r.registry.Lookup(msg.To.ID); ok {
		if conn.Send(model.NewMessageEvent(msg, msg.To.ID), sendTimeout) {
			rec, err := r.advance(ctx, msg, model.StatusDelivered)
			if err != nil {
				return msg.Status, err
			}
			r.notifySender(ctx, rec)
			return model.StatusDelivered, nil
		}
		// Handle no longer valid: treat exactly like "not found".
	}

	// Offline path. The transition happens before the enqueue so a
	// concurrent drain can never observe a queued message still marked
	// sent.
	rec, err := r.advance(ctx, msg, model.StatusQueued)
	if err != nil {
		return msg.Status, err
	}
	if dropped := r.offline.Enqueue(msg.To.ID, msg); dropped != nil {
		r.failQueued(ctx, dropped)
	}
	r.notifySender(ctx, rec)
	return model.StatusQueued, nil
}

func (r *Router) MarkRead(ctx context.Context, reader, messageID uuid.UUID) error {
	rec, ok := r.tracker.Get(messageID)
	if !ok {
		return ErrUnknownMessage
	}
	if rec.Recipient != reader {
		return ErrNotRecipient
	}
	rec, err := r.tracker.Advance(messageID, model.StatusRead)
	if err != nil {
		return err
	}
	r.mirrorStatus(ctx, messageID, model.StatusRead, rec.ReadAt)
	r.notifySender(ctx, rec)
	return nil
}

func (r *Router) Typing(from, to uuid.UUID, isTyping bool) {
	conn, ok := r.registry.Lookup(to)
	if !ok {
		return
	}
	ev := model.NewEvent(to, model.EventTyping, model.PriorityLow,
		model.TypingPayload{From: from, IsTyping: isTyping})
	conn.Send(ev, sendTimeout)
}

// Sweep expires over-age queued messages and prunes terminal status
// records. Attached to the liveness sweeper.
func (r *Router) Sweep(now time.Time) {
	if r.maxQueuedAge > 0 {
		cutoff := now.Add(-r.maxQueuedAge).UnixMilli()
		for _, msg := range r.offline.ExpireBefore(cutoff) {
			r.failQueued(context.Background(), msg)
		}
	}
	// Terminal records linger one hour for the duplicate-route guard.
	r.tracker.PruneTerminal(now.Add(-time.Hour).UnixMilli())
}

// flushBacklog drains the offline queue for a freshly registered user and
// delivers each message exactly once. If the connection vanishes mid-flush
// the undelivered remainder is requeued untouched, still queued.
func (r *Router) flushBacklog(ctx context.Context, userID uuid.UUID, conn registry.Connector) {
	msgs := r.offline.DrainAll(userID)
	for i, msg := range msgs {
		if !conn.Send(model.NewMessageEvent(msg, userID), sendTimeout) {
			r.offline.Requeue(userID, msgs[i:])
			return
		}
		rec, err := r.advance(ctx, msg, model.StatusDelivered)
		if err != nil {
			r.logger.Error("backlog flush: transition rejected",
				"msg_id", msg.ID, "err", err)
			continue
		}
		r.notifySender(ctx, rec)
	}
}

// advance applies a tracker transition, stamps the message and mirrors the
// new status to the durable store.
func (r *Router) advance(ctx context.Context, msg *model.Message, next model.Status) (StatusRecord, error) {
	rec, err := r.tracker.Advance(msg.ID, next)
	if err != nil {
		return rec, err
	}
	msg.Status = next
	msg.DeliveredAt = rec.DeliveredAt
	msg.ReadAt = rec.ReadAt
	r.mirrorStatus(ctx, msg.ID, next, rec.UpdatedAt)
	return rec, nil
}

// failQueued abandons a message dropped by capacity policy or age expiry
// and notifies its sender asynchronously, if connected.
func (r *Router) failQueued(ctx context.Context, msg *model.Message) {
	rec, err := r.tracker.Advance(msg.ID, model.StatusFailed)
	if err != nil {
		r.logger.Error("failed-transition rejected", "msg_id", msg.ID, "err", err)
		return
	}
	msg.Status = model.StatusFailed
	r.mirrorStatus(ctx, msg.ID, model.StatusFailed, rec.UpdatedAt)
	r.notifySender(ctx, rec)
	r.logger.Info("queued message abandoned",
		"msg_id", msg.ID, "recipient", rec.Recipient)
}

// mirrorStatus reflects an in-memory transition into the durable store.
// The tracker stays authoritative: failures are warnings, not errors.
func (r *Router) mirrorStatus(ctx context.Context, id uuid.UUID, status model.Status, at int64) {
	if err := r.messages.UpdateStatus(ctx, id, status, at); err != nil {
		r.logger.Warn("status mirror failed, in-memory state is ahead of store",
			"msg_id", id, "status", status.String(), "err", err)
	}
}

// notifySender pushes a status receipt to the sender's live connection.
// Receipts are not queued: a sender who is offline simply misses it.
func (r *Router) notifySender(ctx context.Context, rec StatusRecord) {
	payload := model.StatusPayload{
		MessageID: rec.MessageID,
		Status:    rec.Status,
		Recipient: rec.Recipient,
		At:        rec.UpdatedAt,
	}
	ev := model.NewStatusEvent(rec.Sender, payload)

	if conn, ok := r.registry.Lookup(rec.Sender); ok {
		conn.Send(ev, sendTimeout)
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.logger.Warn("receipt export failed", "msg_id", rec.MessageID, "err", err)
		}
	}
}
