package core

import (
	"errors"
)

// AggregateName identifies the book aggregate type; it also names the events
// table ("book_events").
const AggregateName = "book"

// DefaultLeftover is the stock a book starts with before any event.
const DefaultLeftover = 10

// ErrNotEnoughCopies rejects a purchase exceeding the current stock.
var ErrNotEnoughCopies = errors.New("not enough copies of the book in stock")

// BookState is the working state of one book, derived by folding its events.
type BookState struct {
	Leftover int
}

// BookCommand is the tagged union of commands the book aggregate accepts.
type BookCommand interface {
	isBookCommand()
}

// Buy requests the purchase of some copies of the book.
type Buy struct {
	Quantity int
}

func (Buy) isBookCommand() {}

// Restock adds some copies of the book to the stock.
type Restock struct {
	Quantity int
}

func (Restock) isBookCommand() {}

// Book is the decision and fold logic of the book aggregate. It is stateless;
// all state flows through the function arguments.
type Book struct{}

// Name returns the aggregate type identifier.
func (Book) Name() string {
	return AggregateName
}

// InitialState returns a book with the default stock.
func (Book) InitialState() BookState {
	return BookState{Leftover: DefaultLeftover}
}

// HandleCommand decides which events follow from the command. A Buy exceeding
// the stock is rejected with ErrNotEnoughCopies and produces nothing.
func (Book) HandleCommand(state BookState, command BookCommand) ([]BookEvent, error) {
	switch cmd := command.(type) {
	case Buy:
		if cmd.Quantity > state.Leftover {
			return nil, ErrNotEnoughCopies
		}

		return []BookEvent{Bought{Quantity: cmd.Quantity}}, nil

	case Restock:
		return []BookEvent{Restocked{Quantity: cmd.Quantity}}, nil

	default:
		return nil, nil
	}
}

// ApplyEvent folds one event into the state.
func (Book) ApplyEvent(state BookState, event BookEvent) BookState {
	switch evt := event.(type) {
	case Bought:
		state.Leftover -= evt.Quantity

	case Restocked:
		state.Leftover += evt.Quantity
	}

	return state
}
