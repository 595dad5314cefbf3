package busadapters

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// KafkaBus publishes stored events to a Kafka topic. Messages are keyed by
// aggregate id, so one aggregate instance's events land on one partition in
// order.
type KafkaBus[E any] struct {
	name   string
	writer *kafka.Writer
	codec  eventstore.Codec[E]
}

// NewKafkaBus creates a bus sink over the given writer. The writer's Topic
// must be set; the caller keeps ownership and closes it.
func NewKafkaBus[E any](name string, writer *kafka.Writer, codec eventstore.Codec[E]) (*KafkaBus[E], error) {
	if name == "" {
		return nil, ErrEmptyBusName
	}

	if writer == nil {
		return nil, ErrNilBrokerConnection
	}

	if codec == nil {
		return nil, eventstore.ErrNilCodec
	}

	return &KafkaBus[E]{name: name, writer: writer, codec: codec}, nil
}

// Name identifies this sink in the store's logs and metrics.
func (b *KafkaBus[E]) Name() string {
	return b.name
}

// Publish writes one event to the topic.
func (b *KafkaBus[E]) Publish(ctx context.Context, event eventstore.StoredEvent[E]) error {
	body, encodeErr := encodeEnvelope(event, b.codec)
	if encodeErr != nil {
		return encodeErr
	}

	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID.String()),
		Value: body,
		Time:  event.OccurredOn,
	})
}

var _ eventstore.EventBus[any] = (*KafkaBus[any])(nil)
