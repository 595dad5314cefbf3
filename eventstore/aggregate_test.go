package eventstore_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

type counterState struct {
	Total int
}

type counted struct {
	By int `json:"by"`
}

func applyCounted(state counterState, event counted) counterState {
	state.Total += event.By
	return state
}

func Test_NewAggregateState_StartsAtSequenceZero_WithTheInitialState(t *testing.T) {
	id := uuid.New()

	state := eventstore.NewAggregateState(id, counterState{Total: 100})

	assert.Equal(t, id, state.ID())
	assert.Equal(t, int64(0), state.SequenceNumber())
	assert.Equal(t, 100, state.State().Total)
}

func Test_FoldStoredEvents_AppliesEventsInOrder_AndTracksTheSequenceNumber(t *testing.T) {
	id := uuid.New()
	initial := eventstore.NewAggregateState(id, counterState{})
	events := []eventstore.StoredEvent[counted]{
		{ID: uuid.New(), AggregateID: id, Payload: counted{By: 2}, OccurredOn: time.Now(), SequenceNumber: 1, Version: 1},
		{ID: uuid.New(), AggregateID: id, Payload: counted{By: -1}, OccurredOn: time.Now(), SequenceNumber: 2, Version: 1},
		{ID: uuid.New(), AggregateID: id, Payload: counted{By: 5}, OccurredOn: time.Now(), SequenceNumber: 3, Version: 1},
	}

	folded := eventstore.FoldStoredEvents(initial, events, applyCounted)

	assert.Equal(t, 6, folded.State().Total)
	assert.Equal(t, int64(3), folded.SequenceNumber())

	// the input copy is unchanged, folding returns a new value
	assert.Equal(t, int64(0), initial.SequenceNumber())
}

func Test_FoldStoredEvents_WithNoEvents_ReturnsTheCopyUnchanged(t *testing.T) {
	initial := eventstore.NewAggregateState(uuid.New(), counterState{Total: 7})

	folded := eventstore.FoldStoredEvents(initial, nil, applyCounted)

	assert.Equal(t, initial, folded)
}
