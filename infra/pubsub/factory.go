// Package pubsub builds AMQP publishers and subscribers over topic
// exchanges for the delivery bus.
package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	amqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-routing-service/config"
)

type Factory struct {
	uri    string
	logger watermill.LoggerAdapter
}

func NewFactory(cfg *config.Config, logger watermill.LoggerAdapter) *Factory {
	return &Factory{
		uri:    cfg.Broker.URI,
		logger: logger,
	}
}

// BuildPublisher returns a publisher bound to a durable topic exchange.
// The watermill topic doubles as the AMQP routing key.
func (f *Factory) BuildPublisher(exchange string) (message.Publisher, error) {
	cfg := f.pubSubConfig(exchange, "")
	return amqp.NewPublisher(cfg, f.logger)
}

// BuildSubscriber returns a subscriber with its own durable queue bound to
// the exchange by the given binding key.
func (f *Factory) BuildSubscriber(queue, exchange, bindingKey string) (message.Subscriber, error) {
	cfg := f.pubSubConfig(exchange, queue)
	cfg.QueueBind.GenerateRoutingKey = func(string) string { return bindingKey }
	return amqp.NewSubscriber(cfg, f.logger)
}

func (f *Factory) pubSubConfig(exchange, queue string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(f.uri, amqp.GenerateQueueNameConstant(queue))
	cfg.Exchange.GenerateName = func(string) string { return exchange }
	cfg.Exchange.Type = "topic"
	cfg.Exchange.Durable = true
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return cfg
}
