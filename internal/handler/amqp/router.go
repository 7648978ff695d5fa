package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/webitel/im-routing-service/internal/adapter/pubsub"
	"github.com/webitel/im-routing-service/internal/service"
)

const (
	// ------------------- EXCHANGES (SOURCES) -------------------
	MessageEventsExchange = "im_message.events"
	// ReceiptsExchange carries delivery receipts published by this node.
	ReceiptsExchange = "im_routing.events"

	// ------------------- TOPICS (ROUTING KEYS) -----------------
	TopicMessageCreated = "im_message.#.message.created.v1"

	// ------------------- QUEUES (CONSUMERS) --------------------
	RoutingProcessorQueue = "im-routing.incoming-processor.v1"
	RoutingPoisonTopic    = "im-routing.incoming-processor.v1.poison"
)

type MessageHandler struct {
	deliverer  service.Deliverer
	logger     *slog.Logger
	enricher   service.Enricher
	dispatcher pubsub.EventDispatcher
}

func NewMessageHandler(
	deliverer service.Deliverer,
	logger *slog.Logger,
	enricher service.Enricher,
	dispatcher pubsub.EventDispatcher,
) *MessageHandler {
	return &MessageHandler{deliverer, logger, enricher, dispatcher}
}

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, logger)
}

// RegisterHandlers binds every bus subscription to its domain handler
// behind the shared middleware chain.
func (h *MessageHandler) RegisterHandlers(router *message.Router, subProvider *pubsub.SubscriberProvider) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), RoutingPoisonTopic)
	if err != nil {
		return fmt.Errorf("poison queue setup: %w", err)
	}

	configs := []struct {
		name     string
		exchange string
		topic    string
		handler  message.NoPublishHandlerFunc
	}{
		{"on_message_created", MessageEventsExchange, TopicMessageCreated, Bind(h, h.OnMessageCreatedV1)},
	}

	for _, c := range configs {
		instanceID := uuid.NewString()[:8]
		// Each handler on this node gets its own queue, e.g.
		// im-routing.incoming-processor.v1.b23a8f12.on_message_created
		handlerQueue := fmt.Sprintf("%s.%s.%s", RoutingProcessorQueue, instanceID, c.name)

		sub, err := subProvider.Build(handlerQueue, c.exchange, c.topic)
		if err != nil {
			return err
		}

		router.AddNoPublisherHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("amqp pipeline ready", "queue", RoutingProcessorQueue)
	return nil
}
