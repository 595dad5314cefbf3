package eventstore

import (
	"context"

	"github.com/google/uuid"
)

// AggregateManager couples an Aggregate with a Store: it loads and folds the
// instance's history, invokes the pure decision function, and hands the
// resulting events to the store for persistence, all under the instance's
// exclusive-access token.
type AggregateManager[S, C, E any] struct {
	aggregate Aggregate[S, C, E]
	store     Store[E]
	ids       IDGenerator
}

// ManagerOption defines a functional option for configuring an
// AggregateManager.
type ManagerOption[S, C, E any] func(*AggregateManager[S, C, E])

// WithManagerIDGenerator sets the strategy used to mint ids for new aggregate
// instances. Defaults to RandomIDs.
func WithManagerIDGenerator[S, C, E any](ids IDGenerator) ManagerOption[S, C, E] {
	return func(m *AggregateManager[S, C, E]) {
		m.ids = ids
	}
}

// NewAggregateManager creates an AggregateManager for the given aggregate
// type and store.
func NewAggregateManager[S, C, E any](
	aggregate Aggregate[S, C, E],
	store Store[E],
	options ...ManagerOption[S, C, E],
) *AggregateManager[S, C, E] {

	manager := &AggregateManager[S, C, E]{
		aggregate: aggregate,
		store:     store,
		ids:       RandomIDs(),
	}

	for _, option := range options {
		option(manager)
	}

	return manager
}

// HandleCommand runs one command against the aggregate instance and returns
// the updated working copy.
//
// Passing uuid.Nil as aggregateID creates a fresh instance id. The token is
// acquired before the load and held through the append, so no two callers
// interleave within the same instance's load-decide-append section; this also
// covers two concurrent "create" calls for the same id.
//
// A domain error from the decision function is returned as-is and nothing is
// persisted. Store errors carry the package's sentinel errors; on a store
// error the working copy is discarded and the caller must reload.
func (m *AggregateManager[S, C, E]) HandleCommand(
	ctx context.Context,
	aggregateID uuid.UUID,
	command C,
) (AggregateState[S], error) {

	var empty AggregateState[S]

	if aggregateID == uuid.Nil {
		newID, idErr := m.ids.NewID()
		if idErr != nil {
			return empty, idErr
		}

		aggregateID = newID
	}

	token, lockErr := m.store.Lock(ctx, aggregateID)
	if lockErr != nil {
		return empty, lockErr
	}
	defer func() {
		_ = token.Unlock(ctx) // no-op when Append already released it
	}()

	state, loadErr := m.loadState(ctx, aggregateID)
	if loadErr != nil {
		return empty, loadErr
	}

	newEvents, domainErr := m.aggregate.HandleCommand(state.State(), command)
	if domainErr != nil {
		return empty, domainErr
	}

	if len(newEvents) == 0 {
		return state, nil
	}

	storedEvents, appendErr := m.store.Append(ctx, aggregateID, token, state.SequenceNumber(), newEvents)
	if appendErr != nil {
		return empty, appendErr
	}

	return FoldStoredEvents(state, storedEvents, m.aggregate.ApplyEvent), nil
}

// Load reconstructs the working copy of one aggregate instance without
// locking it. The second return value reports whether any events exist; when
// false, the returned copy is the default state with sequence number 0.
func (m *AggregateManager[S, C, E]) Load(
	ctx context.Context,
	aggregateID uuid.UUID,
) (AggregateState[S], bool, error) {

	state, loadErr := m.loadState(ctx, aggregateID)
	if loadErr != nil {
		return AggregateState[S]{}, false, loadErr
	}

	return state, state.SequenceNumber() > 0, nil
}

// LockAndLoad acquires the instance's token and only then reconstructs the
// working copy. The caller owns the returned token and must Unlock it on
// every exit path; on error no token is returned and nothing is held.
func (m *AggregateManager[S, C, E]) LockAndLoad(
	ctx context.Context,
	aggregateID uuid.UUID,
) (AggregateState[S], *LockGuard, error) {

	token, lockErr := m.store.Lock(ctx, aggregateID)
	if lockErr != nil {
		return AggregateState[S]{}, nil, lockErr
	}

	state, loadErr := m.loadState(ctx, aggregateID)
	if loadErr != nil {
		_ = token.Unlock(ctx)
		return AggregateState[S]{}, nil, loadErr
	}

	return state, token, nil
}

// Delete removes the instance's full history along with its transactional
// read-side projections, under the instance's token.
func (m *AggregateManager[S, C, E]) Delete(ctx context.Context, aggregateID uuid.UUID) error {
	token, lockErr := m.store.Lock(ctx, aggregateID)
	if lockErr != nil {
		return lockErr
	}
	defer func() {
		_ = token.Unlock(ctx) // no-op when Delete already released it
	}()

	return m.store.Delete(ctx, aggregateID, token)
}

// loadState loads and folds the instance's history from the primary database:
// working copies feed decisions, so they must never be built from stale reads.
func (m *AggregateManager[S, C, E]) loadState(
	ctx context.Context,
	aggregateID uuid.UUID,
) (AggregateState[S], error) {

	storedEvents, loadErr := m.store.Load(WithStrongConsistency(ctx), aggregateID)
	if loadErr != nil {
		return AggregateState[S]{}, loadErr
	}

	initial := NewAggregateState(aggregateID, m.aggregate.InitialState())

	return FoldStoredEvents(initial, storedEvents, m.aggregate.ApplyEvent), nil
}
