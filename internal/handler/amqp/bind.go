package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler is the functional signature for business logic bound to a
// bus subscription.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// Bind connects watermill to domain logic, handling panic recovery and
// payload decoding.
//
// Unlike a pure fan-out delivery node, this service owns the offline queue
// for every recipient, so messages are processed whether or not the target
// user is connected here; there is no connected-locality filter.
func Bind[T any](h *MessageHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// Keep the consumer alive through runtime panics.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered in bus handler",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			// ACK: a poison pill never becomes parseable by retrying.
			h.logger.Error("bus payload decode failed", "err", err, "msg_id", msg.UUID)
			return nil
		}

		// NACK on error: the retry middleware and poison queue take over.
		return fn(msg.Context(), payload)
	}
}
