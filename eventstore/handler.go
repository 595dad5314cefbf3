package eventstore

import (
	"context"

	"github.com/google/uuid"
)

// TransactionalEventHandler updates a read-side projection inside the same
// transaction that appends the events. Handlers run once per event, in
// registration order; any error aborts the whole append, so the read side can
// never observe a write-side event without its projection, or vice versa.
type TransactionalEventHandler[E any] interface {
	// Name identifies the handler in logs and traces.
	Name() string

	// Handle projects one stored event. Statements must go through tx.
	Handle(ctx context.Context, event StoredEvent[E], tx Tx) error

	// Delete removes the projected rows for one aggregate instance. It is
	// invoked by Store.Delete and by rebuilds before replaying.
	Delete(ctx context.Context, aggregateID uuid.UUID, tx Tx) error
}

// EventHandler updates a read-side projection after the append has committed.
// Handlers are independent of each other; a returned error is logged and
// swallowed by the store, leaving the read side inconsistent until a rebuild.
type EventHandler[E any] interface {
	// Name identifies the handler in logs and traces.
	Name() string

	// Handle processes one committed stored event.
	Handle(ctx context.Context, event StoredEvent[E]) error

	// Delete removes the handler's data for one aggregate instance.
	Delete(ctx context.Context, aggregateID uuid.UUID) error
}

// EventBus publishes committed events to an external broker. Delivery is
// best-effort and at-most-once: a returned error is logged and swallowed,
// there is no built-in retry or outbox.
type EventBus[E any] interface {
	// Name identifies the bus in logs and traces.
	Name() string

	// Publish sends one committed stored event to the broker.
	Publish(ctx context.Context, event StoredEvent[E]) error
}

// Replayer is an optional capability for handlers and buses. Implementations
// returning false are skipped by rebuilds, which is what handlers with
// non-repeatable external side effects want. Handlers that do not implement
// Replayer are replayed.
type Replayer interface {
	Replayable() bool
}

// IsReplayable reports whether a handler or bus should run during a rebuild.
func IsReplayable(handlerOrBus any) bool {
	if replayer, ok := handlerOrBus.(Replayer); ok {
		return replayer.Replayable()
	}

	return true
}
