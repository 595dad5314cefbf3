package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// StoredEvent is an immutable, persisted fact about one aggregate instance.
//
// It is created by the event store at append time; the Payload has already
// been round-tripped through the configured Codec, so for any event loaded
// back from the store the Payload is the upcast, current-shape event.
type StoredEvent[E any] struct {
	// ID uniquely identifies the event across the whole log.
	// With a time-ordered IDGenerator it increases with insertion order.
	ID uuid.UUID

	// AggregateID identifies the aggregate instance that emitted the event.
	AggregateID uuid.UUID

	// Payload is the domain event itself.
	Payload E

	// OccurredOn is the timestamp assigned when the event was persisted.
	OccurredOn time.Time

	// SequenceNumber is the position of the event within its aggregate
	// instance, starting at 1.
	SequenceNumber SequenceNumber

	// Version is the payload schema version the event was written with.
	Version int
}
