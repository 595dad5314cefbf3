package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/core"
)

func Test_Book_StartsWithTheDefaultStock(t *testing.T) {
	state := core.Book{}.InitialState()

	assert.Equal(t, core.DefaultLeftover, state.Leftover)
}

func Test_Book_Buy_ProducesABoughtEvent_WhenEnoughCopiesAreInStock(t *testing.T) {
	book := core.Book{}
	state := book.InitialState()

	events, err := book.HandleCommand(state, core.Buy{Quantity: 3})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.Bought{Quantity: 3}, events[0])
}

func Test_Book_Buy_IsRejected_WhenTheStockIsInsufficient(t *testing.T) {
	book := core.Book{}
	state := core.BookState{Leftover: 2}

	events, err := book.HandleCommand(state, core.Buy{Quantity: 3})

	assert.ErrorIs(t, err, core.ErrNotEnoughCopies)
	assert.Empty(t, events)
}

func Test_Book_Buy_AllowsEmptyingTheStockExactly(t *testing.T) {
	book := core.Book{}
	state := core.BookState{Leftover: 3}

	events, err := book.HandleCommand(state, core.Buy{Quantity: 3})

	require.NoError(t, err)
	require.Len(t, events, 1)
}

func Test_Book_Restock_AlwaysProducesARestockedEvent(t *testing.T) {
	book := core.Book{}
	state := core.BookState{Leftover: 0}

	events, err := book.HandleCommand(state, core.Restock{Quantity: 5})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.Restocked{Quantity: 5}, events[0])
}

func Test_Book_ApplyEvent_FoldsPurchasesAndRestocks(t *testing.T) {
	book := core.Book{}
	state := book.InitialState()

	state = book.ApplyEvent(state, core.Bought{Quantity: 3})
	assert.Equal(t, 7, state.Leftover)

	state = book.ApplyEvent(state, core.Restocked{Quantity: 5})
	assert.Equal(t, 12, state.Leftover)

	state = book.ApplyEvent(state, core.Bought{Quantity: 12})
	assert.Equal(t, 0, state.Leftover)
}
