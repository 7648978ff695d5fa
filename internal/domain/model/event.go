package model

import "github.com/google/uuid"

type EventKind int16

const (
	EventConnected EventKind = iota + 1
	EventPresence
	EventMessage
	EventStatus
	EventTyping
	EventError
)

var eventKindNames = map[EventKind]string{
	EventConnected: "connected",
	EventPresence:  "presence",
	EventMessage:   "message",
	EventStatus:    "status",
	EventTyping:    "typing",
	EventError:     "error",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all data packets flowing through
// per-connection send queues toward a live client.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	// GetUserID is the physical recipient of this event instance,
	// not necessarily a conversation participant.
	GetUserID() uuid.UUID
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() any
}

// Exportable marks an event that should also be re-published to the
// message bus. An empty routing key skips publishing.
type Exportable interface {
	GetRoutingKey() string
}
