package eventstore

import (
	"context"

	"github.com/google/uuid"
)

// StreamOrder selects the total order of a full-log stream.
type StreamOrder int

const (
	// StreamOrderByAggregate orders by (aggregate_id, sequence_number).
	// This is the order rebuilds of a single projection want.
	StreamOrderByAggregate StreamOrder = iota

	// StreamOrderByOccurrence orders by (occurred_on, sequence_number).
	// Merge-replays across multiple logs use this to preserve
	// cross-aggregate causal order.
	StreamOrderByOccurrence
)

// Store is the contract the AggregateManager needs from an event store
// implementation for one aggregate type.
type Store[E any] interface {
	// Lock acquires the exclusive-access token for the given aggregate
	// instance, blocking until no other token for the same id is live.
	// Canceling the context unwinds the wait without leaking the lock.
	Lock(ctx context.Context, aggregateID uuid.UUID) (*LockGuard, error)

	// Load returns the instance's stored events ordered by sequence number
	// ascending. An empty slice signals a new aggregate.
	Load(ctx context.Context, aggregateID uuid.UUID) ([]StoredEvent[E], error)

	// Append persists the events with sequence numbers
	// priorSequenceNumber+1 .. priorSequenceNumber+len(events), running all
	// transactional event handlers inside the same transaction. After commit
	// the token is released, then eventual handlers and buses run.
	// On any failure before commit nothing becomes visible.
	Append(
		ctx context.Context,
		aggregateID uuid.UUID,
		token *LockGuard,
		priorSequenceNumber SequenceNumber,
		events []E,
	) ([]StoredEvent[E], error)

	// Delete removes the instance's full history and the transactional
	// read-side rows in one transaction, then releases the token and runs the
	// eventual handlers' delete operations.
	Delete(ctx context.Context, aggregateID uuid.UUID, token *LockGuard) error
}

// Rows is a minimal database row iterator, implemented by the engine's
// database adapters.
//
// Next returning false does not distinguish the end of the result set from a
// mid-iteration driver failure; callers must check Err after the loop before
// treating the result as complete.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Tx is the transactional context handed to transactional event handlers.
// Statements executed through it join the append's (or delete's, or rebuild's)
// transaction and are discarded with it on rollback.
type Tx interface {
	Exec(ctx context.Context, sqlQuery string) (rowsAffected int64, err error)
	Query(ctx context.Context, sqlQuery string) (Rows, error)
}
