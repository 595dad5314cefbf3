package eventstore

import (
	"github.com/google/uuid"
)

// Aggregate couples the pure decision and fold logic of one aggregate type.
//
// Both HandleCommand and ApplyEvent must be pure functions: no I/O, no
// observable side effects, identical results for identical inputs. The event
// store relies on this for correct replay.
type Aggregate[S, C, E any] interface {
	// Name returns the stable identifier of the aggregate type. It determines
	// the default events table name and scopes the per-instance lock keys.
	Name() string

	// InitialState returns the state of an instance before any event was
	// applied. Every fold starts from it.
	InitialState() S

	// HandleCommand decides which events follow from the command given the
	// current state. A returned error is a domain error: the command is
	// rejected and nothing is persisted.
	HandleCommand(state S, command C) ([]E, error)

	// ApplyEvent folds one event into the state and returns the new state.
	ApplyEvent(state S, event E) S
}

// AggregateState is the in-memory working copy of one aggregate instance,
// derived by folding its stored events. It is never persisted on its own and
// is only valid within the scope that holds the associated LockGuard.
type AggregateState[S any] struct {
	id             uuid.UUID
	sequenceNumber SequenceNumber
	inner          S
}

// NewAggregateState creates a fresh working copy for the given id with the
// given initial state and sequence number 0.
func NewAggregateState[S any](id uuid.UUID, initial S) AggregateState[S] {
	return AggregateState[S]{id: id, inner: initial}
}

// ID returns the aggregate instance id.
func (as AggregateState[S]) ID() uuid.UUID {
	return as.id
}

// SequenceNumber returns the sequence number of the last applied event,
// or 0 if no event has been applied yet.
func (as AggregateState[S]) SequenceNumber() SequenceNumber {
	return as.sequenceNumber
}

// State returns the domain state.
func (as AggregateState[S]) State() S {
	return as.inner
}

// FoldStoredEvents applies the given stored events in order onto the working
// copy and returns the updated copy. The events must belong to the copy's
// aggregate instance and be ordered by sequence number ascending.
func FoldStoredEvents[S, E any](
	state AggregateState[S],
	events []StoredEvent[E],
	apply func(S, E) S,
) AggregateState[S] {

	for _, event := range events {
		state.inner = apply(state.inner, event.Payload)
		state.sequenceNumber = event.SequenceNumber
	}

	return state
}
