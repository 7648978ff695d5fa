package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"
	infrapubsub "github.com/webitel/im-routing-service/infra/pubsub"
)

type PublisherProvider struct {
	factory *infrapubsub.Factory
}

func NewPublisherProvider(f *infrapubsub.Factory) *PublisherProvider {
	return &PublisherProvider{factory: f}
}

func (pp *PublisherProvider) Build(exchange string) (message.Publisher, error) {
	return pp.factory.BuildPublisher(exchange)
}

type SubscriberProvider struct {
	factory *infrapubsub.Factory
}

func NewSubscriberProvider(f *infrapubsub.Factory) *SubscriberProvider {
	return &SubscriberProvider{factory: f}
}

func (sp *SubscriberProvider) Build(queue, exchange, bindingKey string) (message.Subscriber, error) {
	return sp.factory.BuildSubscriber(queue, exchange, bindingKey)
}
