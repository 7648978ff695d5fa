package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/domain/model"
)

const sourceName = "im-routing-service"

// EventDispatcher re-publishes exportable coordinator events (delivery
// receipts) to the bus. The transport stays hidden behind this contract.
type EventDispatcher interface {
	Publish(ctx context.Context, ev model.Eventer) error
	Publisher() message.Publisher
}

// exportEnvelope is the bus wire format for outgoing events.
type exportEnvelope struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	UserID    uuid.UUID       `json:"user_id"`
	Kind      model.EventKind `json:"kind"`
	Payload   any             `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

type eventDispatcher struct {
	publisher message.Publisher
}

func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{publisher: pub}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev model.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	exportable, ok := ev.(model.Exportable)
	if !ok || exportable.GetRoutingKey() == "" {
		// Local-only event; nothing to export.
		return nil
	}

	payload, err := json.Marshal(exportEnvelope{
		ID:        ev.GetID(),
		Source:    sourceName,
		UserID:    ev.GetUserID(),
		Kind:      ev.GetKind(),
		Payload:   ev.GetPayload(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(exportable.GetRoutingKey(), msg); err != nil {
		return fmt.Errorf("event dispatcher: publish to %s: %w", exportable.GetRoutingKey(), err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
