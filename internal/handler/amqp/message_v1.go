package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/service"
)

// OnMessageCreatedV1 routes a message created by a sibling service (REST
// API, bots) through the same delivery path as WebSocket-born messages.
func (h *MessageHandler) OnMessageCreatedV1(ctx context.Context, raw *MessageV1) error {
	msg := raw.ToDomain()
	if msg.ID == uuid.Nil || msg.To.ID == uuid.Nil {
		// ACK: unroutable payloads are a terminal state.
		h.logger.Warn("bus message without identity or recipient", "msg_id", raw.MessageID)
		return nil
	}

	from, to, err := h.enricher.ResolvePeers(ctx, msg.From, msg.To)
	if err != nil {
		// NACK: enrichment is transient; retried by the middleware chain.
		return fmt.Errorf("enrich participants: %w", err)
	}
	msg.From, msg.To = from, to

	if _, err := h.deliverer.Route(ctx, msg); err != nil {
		var stateErr *service.StateError
		if errors.Is(err, service.ErrAlreadyRouted) || errors.As(err, &stateErr) {
			// ACK: redelivery of an already-routed message must not
			// duplicate delivery.
			h.logger.Debug("duplicate bus delivery ignored", "msg_id", msg.ID)
			return nil
		}
		return fmt.Errorf("route message %s: %w", msg.ID, err)
	}
	return nil
}
