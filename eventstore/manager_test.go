package eventstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// counter is a minimal aggregate for driving the manager: increment commands
// produce counted events, an increment of zero produces nothing, and negative
// increments are rejected.
type counter struct{}

type increment struct {
	By int
}

var errNegativeIncrement = errors.New("increment must not be negative")

func (counter) Name() string {
	return "counter"
}

func (counter) InitialState() counterState {
	return counterState{}
}

func (counter) HandleCommand(state counterState, command increment) ([]counted, error) {
	if command.By < 0 {
		return nil, errNegativeIncrement
	}

	if command.By == 0 {
		return nil, nil
	}

	return []counted{{By: command.By}}, nil
}

func (counter) ApplyEvent(state counterState, event counted) counterState {
	return applyCounted(state, event)
}

// fakeStore implements eventstore.Store in memory and records the calls.
type fakeStore struct {
	events map[uuid.UUID][]eventstore.StoredEvent[counted]

	lockErr     error
	loadErr     error
	appendErr   error
	locked      []uuid.UUID
	unlocked    int
	appendCalls int
	deleted     []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[uuid.UUID][]eventstore.StoredEvent[counted])}
}

func (s *fakeStore) Lock(_ context.Context, aggregateID uuid.UUID) (*eventstore.LockGuard, error) {
	if s.lockErr != nil {
		return nil, s.lockErr
	}

	s.locked = append(s.locked, aggregateID)

	return eventstore.NewLockGuard(func(_ context.Context) error {
		s.unlocked++
		return nil
	}), nil
}

func (s *fakeStore) Load(_ context.Context, aggregateID uuid.UUID) ([]eventstore.StoredEvent[counted], error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	return s.events[aggregateID], nil
}

func (s *fakeStore) Append(
	ctx context.Context,
	aggregateID uuid.UUID,
	token *eventstore.LockGuard,
	priorSequenceNumber eventstore.SequenceNumber,
	events []counted,
) ([]eventstore.StoredEvent[counted], error) {

	s.appendCalls++

	if s.appendErr != nil {
		return nil, s.appendErr
	}

	stored := make([]eventstore.StoredEvent[counted], 0, len(events))
	for i, event := range events {
		stored = append(stored, eventstore.StoredEvent[counted]{
			ID:             uuid.New(),
			AggregateID:    aggregateID,
			Payload:        event,
			OccurredOn:     time.Now().UTC(),
			SequenceNumber: priorSequenceNumber + int64(i) + 1,
			Version:        1,
		})
	}

	s.events[aggregateID] = append(s.events[aggregateID], stored...)

	if token != nil {
		_ = token.Unlock(ctx)
	}

	return stored, nil
}

func (s *fakeStore) Delete(ctx context.Context, aggregateID uuid.UUID, token *eventstore.LockGuard) error {
	delete(s.events, aggregateID)
	s.deleted = append(s.deleted, aggregateID)

	if token != nil {
		_ = token.Unlock(ctx)
	}

	return nil
}

func newCounterManager(store *fakeStore) *eventstore.AggregateManager[counterState, increment, counted] {
	return eventstore.NewAggregateManager[counterState, increment, counted](counter{}, store)
}

func Test_Manager_HandleCommand_MintsAnID_ForAFreshAggregate(t *testing.T) {
	store := newFakeStore()
	manager := newCounterManager(store)

	state, err := manager.HandleCommand(context.Background(), uuid.Nil, increment{By: 2})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, state.ID())
	assert.Equal(t, 2, state.State().Total)
	assert.Equal(t, int64(1), state.SequenceNumber())
}

func Test_Manager_HandleCommand_LoadsDecidesAppends_UnderTheLock(t *testing.T) {
	// arrange
	store := newFakeStore()
	manager := newCounterManager(store)
	aggregateID := uuid.New()
	ctx := context.Background()

	_, firstErr := manager.HandleCommand(ctx, aggregateID, increment{By: 3})
	require.NoError(t, firstErr)

	// act
	state, secondErr := manager.HandleCommand(ctx, aggregateID, increment{By: 4})

	// assert
	require.NoError(t, secondErr)
	assert.Equal(t, 7, state.State().Total)
	assert.Equal(t, int64(2), state.SequenceNumber())
	assert.Equal(t, []uuid.UUID{aggregateID, aggregateID}, store.locked)
	assert.Equal(t, 2, store.unlocked)
}

func Test_Manager_HandleCommand_ReturnsDomainErrors_WithoutPersistingAnything(t *testing.T) {
	store := newFakeStore()
	manager := newCounterManager(store)

	_, err := manager.HandleCommand(context.Background(), uuid.New(), increment{By: -1})

	assert.ErrorIs(t, err, errNegativeIncrement)
	assert.Zero(t, store.appendCalls)
	assert.Equal(t, 1, store.unlocked)
}

func Test_Manager_HandleCommand_SkipsTheAppend_WhenNoEventsAreProduced(t *testing.T) {
	store := newFakeStore()
	manager := newCounterManager(store)
	aggregateID := uuid.New()

	state, err := manager.HandleCommand(context.Background(), aggregateID, increment{By: 0})

	require.NoError(t, err)
	assert.Zero(t, store.appendCalls)
	assert.Equal(t, int64(0), state.SequenceNumber())
	assert.Equal(t, 1, store.unlocked)
}

func Test_Manager_HandleCommand_ReleasesTheLock_OnStoreFailures(t *testing.T) {
	store := newFakeStore()
	store.appendErr = errors.New("database gone")
	manager := newCounterManager(store)

	_, err := manager.HandleCommand(context.Background(), uuid.New(), increment{By: 1})

	require.Error(t, err)
	assert.Equal(t, 1, store.unlocked)
}

func Test_Manager_HandleCommand_PropagatesLockFailures(t *testing.T) {
	store := newFakeStore()
	store.lockErr = eventstore.ErrAcquiringLockFailed
	manager := newCounterManager(store)

	_, err := manager.HandleCommand(context.Background(), uuid.New(), increment{By: 1})

	assert.ErrorIs(t, err, eventstore.ErrAcquiringLockFailed)
}

func Test_Manager_Load_ReportsWhetherTheAggregateExists(t *testing.T) {
	store := newFakeStore()
	manager := newCounterManager(store)
	ctx := context.Background()

	_, found, loadErr := manager.Load(ctx, uuid.New())
	require.NoError(t, loadErr)
	assert.False(t, found)

	state, err := manager.HandleCommand(ctx, uuid.Nil, increment{By: 1})
	require.NoError(t, err)

	loaded, found, loadErr := manager.Load(ctx, state.ID())
	require.NoError(t, loadErr)
	assert.True(t, found)
	assert.Equal(t, 1, loaded.State().Total)
}

func Test_Manager_LockAndLoad_HandsTheTokenToTheCaller(t *testing.T) {
	store := newFakeStore()
	manager := newCounterManager(store)
	ctx := context.Background()

	state, err := manager.HandleCommand(ctx, uuid.Nil, increment{By: 5})
	require.NoError(t, err)
	unlockedBefore := store.unlocked

	loaded, token, lockErr := manager.LockAndLoad(ctx, state.ID())

	require.NoError(t, lockErr)
	require.NotNil(t, token)
	assert.Equal(t, 5, loaded.State().Total)
	assert.Equal(t, unlockedBefore, store.unlocked)

	require.NoError(t, token.Unlock(ctx))
	assert.Equal(t, unlockedBefore+1, store.unlocked)
}

func Test_Manager_LockAndLoad_ReleasesTheToken_WhenTheLoadFails(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("database gone")
	manager := newCounterManager(store)

	_, token, err := manager.LockAndLoad(context.Background(), uuid.New())

	require.Error(t, err)
	assert.Nil(t, token)
	assert.Equal(t, 1, store.unlocked)
}

func Test_Manager_Delete_RemovesTheAggregate_UnderTheLock(t *testing.T) {
	store := newFakeStore()
	manager := newCounterManager(store)
	ctx := context.Background()

	state, err := manager.HandleCommand(ctx, uuid.Nil, increment{By: 1})
	require.NoError(t, err)

	require.NoError(t, manager.Delete(ctx, state.ID()))

	assert.Equal(t, []uuid.UUID{state.ID()}, store.deleted)
	_, found, loadErr := manager.Load(ctx, state.ID())
	require.NoError(t, loadErr)
	assert.False(t, found)
}
