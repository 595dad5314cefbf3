package busadapters

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

const (
	fieldAggregateID = "aggregate_id"
	fieldEnvelope    = "envelope"
)

// RedisStreamBus publishes stored events to a Redis stream via XADD. The
// whole envelope goes into one field, with the aggregate id duplicated as
// its own field for consumer-side filtering.
type RedisStreamBus[E any] struct {
	name   string
	client redis.UniversalClient
	stream string
	codec  eventstore.Codec[E]
}

// NewRedisStreamBus creates a bus sink appending to the given stream key.
func NewRedisStreamBus[E any](name string, client redis.UniversalClient, stream string, codec eventstore.Codec[E]) (*RedisStreamBus[E], error) {
	if name == "" {
		return nil, ErrEmptyBusName
	}

	if client == nil {
		return nil, ErrNilBrokerConnection
	}

	if stream == "" {
		return nil, ErrEmptyDestination
	}

	if codec == nil {
		return nil, eventstore.ErrNilCodec
	}

	return &RedisStreamBus[E]{name: name, client: client, stream: stream, codec: codec}, nil
}

// Name identifies this sink in the store's logs and metrics.
func (b *RedisStreamBus[E]) Name() string {
	return b.name
}

// Publish appends one event to the stream.
func (b *RedisStreamBus[E]) Publish(ctx context.Context, event eventstore.StoredEvent[E]) error {
	body, encodeErr := encodeEnvelope(event, b.codec)
	if encodeErr != nil {
		return encodeErr
	}

	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{
			fieldAggregateID: event.AggregateID.String(),
			fieldEnvelope:    string(body),
		},
	}).Err()
}

var _ eventstore.EventBus[any] = (*RedisStreamBus[any])(nil)
