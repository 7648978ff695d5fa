package amqp

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	infrapubsub "github.com/webitel/im-routing-service/infra/pubsub"
	pubsubadapter "github.com/webitel/im-routing-service/internal/adapter/pubsub"
	"github.com/webitel/im-routing-service/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		infrapubsub.NewFactory,

		pubsubadapter.NewPublisherProvider,
		pubsubadapter.NewSubscriberProvider,

		func(pp *pubsubadapter.PublisherProvider) (pubsubadapter.EventDispatcher, error) {
			pub, err := pp.Build(ReceiptsExchange)
			if err != nil {
				return nil, err
			}
			return pubsubadapter.NewEventDispatcher(pub), nil
		},

		NewMessageHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(
		lc fx.Lifecycle,
		router *message.Router,
		h *MessageHandler,
		subProvider *pubsubadapter.SubscriberProvider,
		dispatcher pubsubadapter.EventDispatcher,
		svcRouter *service.Router,
	) error {
		// Delivery receipts leave the node through the bus as well.
		svcRouter.SetPublisher(dispatcher)

		if err := h.RegisterHandlers(router, subProvider); err != nil {
			return err
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						h.logger.Error("watermill router stopped", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return router.Close()
			},
		})
		return nil
	}),
)
