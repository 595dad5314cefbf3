package busadapters

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

const contentTypeJSON = "application/json"

// RabbitBus publishes stored events to a RabbitMQ exchange. The aggregate id
// is used as the routing key, so topic exchanges can route per instance.
type RabbitBus[E any] struct {
	name     string
	channel  *amqp.Channel
	exchange string
	codec    eventstore.Codec[E]
}

// NewRabbitBus creates a bus sink over the given channel. The exchange must
// exist; the caller keeps ownership of the channel and closes it.
func NewRabbitBus[E any](name string, channel *amqp.Channel, exchange string, codec eventstore.Codec[E]) (*RabbitBus[E], error) {
	if name == "" {
		return nil, ErrEmptyBusName
	}

	if channel == nil {
		return nil, ErrNilBrokerConnection
	}

	if exchange == "" {
		return nil, ErrEmptyDestination
	}

	if codec == nil {
		return nil, eventstore.ErrNilCodec
	}

	return &RabbitBus[E]{name: name, channel: channel, exchange: exchange, codec: codec}, nil
}

// Name identifies this sink in the store's logs and metrics.
func (b *RabbitBus[E]) Name() string {
	return b.name
}

// Publish writes one event to the exchange.
func (b *RabbitBus[E]) Publish(ctx context.Context, event eventstore.StoredEvent[E]) error {
	body, encodeErr := encodeEnvelope(event, b.codec)
	if encodeErr != nil {
		return encodeErr
	}

	return b.channel.PublishWithContext(
		ctx,
		b.exchange,
		event.AggregateID.String(),
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			MessageId:   event.ID.String(),
			Timestamp:   event.OccurredOn,
			Body:        body,
		},
	)
}

var _ eventstore.EventBus[any] = (*RabbitBus[any])(nil)
