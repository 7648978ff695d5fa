package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const ServerVersion = "1.0.0"

var (
	_ Eventer    = (*Event)(nil)
	_ Exportable = (*Event)(nil)
)

// Event is a generic envelope for signals and domain notifications routed
// to a single connected user.
type Event struct {
	id         string
	userID     uuid.UUID
	kind       EventKind
	priority   EventPriority
	occurredAt int64
	payload    any
	routingKey string
}

func (e *Event) GetID() string              { return e.id }
func (e *Event) GetKind() EventKind         { return e.kind }
func (e *Event) GetUserID() uuid.UUID       { return e.userID }
func (e *Event) GetPriority() EventPriority { return e.priority }
func (e *Event) GetOccurredAt() int64       { return e.occurredAt }
func (e *Event) GetPayload() any            { return e.payload }
func (e *Event) GetRoutingKey() string      { return e.routingKey }

// NewEvent is the universal factory for signals addressed to userID.
func NewEvent(userID uuid.UUID, kind EventKind, priority EventPriority, payload any) *Event {
	return &Event{
		id:         uuid.NewString(),
		userID:     userID,
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

// ConnectedPayload is the handshake acknowledgement after registration.
type ConnectedPayload struct {
	Ok            bool   `json:"ok"`
	ConnectionID  string `json:"connection_id"`
	ServerVersion string `json:"server_version"`
}

// DisconnectedPayload is the final event before a server-side close.
type DisconnectedPayload struct {
	Reason string `json:"reason"`
}

// PresencePayload carries the full online set. Seq is monotonic across
// broadcasts; a client must discard a snapshot with a lower Seq than the
// last one it applied.
type PresencePayload struct {
	Seq    uint64      `json:"seq"`
	Online []uuid.UUID `json:"online"`
}

// StatusPayload is a delivery receipt for the message's sender.
type StatusPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Status    Status    `json:"status"`
	Recipient uuid.UUID `json:"recipient"`
	At        int64     `json:"at"`
}

// TypingPayload relays a typing indicator. Never queued.
type TypingPayload struct {
	From     uuid.UUID `json:"from"`
	IsTyping bool      `json:"is_typing"`
}

// ErrorPayload is sent to the originating connection on protocol or
// state errors; the connection stays open.
type ErrorPayload struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// NewMessageEvent wraps a message for delivery to userID. Even though the
// conversation peers are From/To, userID is the physical recipient of this
// event instance (sender copies use the same envelope).
func NewMessageEvent(msg *Message, userID uuid.UUID) *Event {
	return &Event{
		id:         uuid.NewString(),
		userID:     userID,
		kind:       EventMessage,
		priority:   PriorityHigh,
		occurredAt: msg.CreatedAt,
		payload:    msg,
	}
}

// NewStatusEvent builds a receipt for the sender and tags it for bus export.
// Routing key pattern: im_routing.v1.{sender}.status.{status}
func NewStatusEvent(sender uuid.UUID, p StatusPayload) *Event {
	return &Event{
		id:         uuid.NewString(),
		userID:     sender,
		kind:       EventStatus,
		priority:   PriorityNormal,
		occurredAt: p.At,
		payload:    p,
		routingKey: fmt.Sprintf("im_routing.v1.%s.status.%s", sender, p.Status),
	}
}
