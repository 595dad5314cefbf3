package core

// Event type identifiers.
const (
	BoughtEventType    = "Bought"
	RestockedEventType = "Restocked"
)

// BookEvent is the tagged union of everything that can happen to a book.
type BookEvent interface {
	// EventType returns the string identifier for this event type.
	EventType() string
}

// Bought represents copies of the book leaving the stock through a sale.
type Bought struct {
	Quantity int `json:"quantity"`
}

// EventType returns the event type identifier.
func (e Bought) EventType() string {
	return BoughtEventType
}

// Restocked represents copies of the book being added to the stock.
type Restocked struct {
	Quantity int `json:"quantity"`
}

// EventType returns the event type identifier.
func (e Restocked) EventType() string {
	return RestockedEventType
}
