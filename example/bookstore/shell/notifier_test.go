package shell_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/core"
	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/shell"
)

func storedBookEvent(bookID uuid.UUID, seq int64, payload core.BookEvent) eventstore.StoredEvent[core.BookEvent] {
	return eventstore.StoredEvent[core.BookEvent]{
		ID:             uuid.New(),
		AggregateID:    bookID,
		Payload:        payload,
		OccurredOn:     time.Now().UTC(),
		SequenceNumber: seq,
		Version:        shell.CurrentPayloadVersion,
	}
}

func Test_LowStockNotifier_Alerts_WhenTheStockDropsBelowTheThreshold(t *testing.T) {
	// arrange
	bookID := uuid.New()
	var alerts []int
	notifier := shell.NewLowStockNotifier(3, func(alertedID uuid.UUID, leftover int) {
		assert.Equal(t, bookID, alertedID)
		alerts = append(alerts, leftover)
	})
	ctx := context.Background()

	// act - stock goes 10 -> 5 -> 2 -> 7 -> 1
	require.NoError(t, notifier.Handle(ctx, storedBookEvent(bookID, 1, core.Bought{Quantity: 5})))
	require.NoError(t, notifier.Handle(ctx, storedBookEvent(bookID, 2, core.Bought{Quantity: 3})))
	require.NoError(t, notifier.Handle(ctx, storedBookEvent(bookID, 3, core.Restocked{Quantity: 5})))
	require.NoError(t, notifier.Handle(ctx, storedBookEvent(bookID, 4, core.Bought{Quantity: 6})))

	// assert
	assert.Equal(t, []int{2, 1}, alerts)
}

func Test_LowStockNotifier_TracksBooksIndependently(t *testing.T) {
	lowBook := uuid.New()
	fullBook := uuid.New()
	alerted := make(map[uuid.UUID]int)
	notifier := shell.NewLowStockNotifier(3, func(alertedID uuid.UUID, _ int) {
		alerted[alertedID]++
	})
	ctx := context.Background()

	require.NoError(t, notifier.Handle(ctx, storedBookEvent(lowBook, 1, core.Bought{Quantity: 9})))
	require.NoError(t, notifier.Handle(ctx, storedBookEvent(fullBook, 1, core.Bought{Quantity: 1})))

	assert.Equal(t, 1, alerted[lowBook])
	assert.Zero(t, alerted[fullBook])
}

func Test_LowStockNotifier_Delete_ForgetsTheBook(t *testing.T) {
	bookID := uuid.New()
	var alerts []int
	notifier := shell.NewLowStockNotifier(3, func(_ uuid.UUID, leftover int) {
		alerts = append(alerts, leftover)
	})
	ctx := context.Background()

	require.NoError(t, notifier.Handle(ctx, storedBookEvent(bookID, 1, core.Bought{Quantity: 9})))
	require.NoError(t, notifier.Delete(ctx, bookID))

	// after the delete, tracking restarts from the default stock
	require.NoError(t, notifier.Handle(ctx, storedBookEvent(bookID, 1, core.Bought{Quantity: 2})))

	assert.Equal(t, []int{1}, alerts)
}

func Test_LowStockNotifier_IsNotReplayable(t *testing.T) {
	notifier := shell.NewLowStockNotifier(3, nil)

	assert.False(t, eventstore.IsReplayable(notifier))
}
