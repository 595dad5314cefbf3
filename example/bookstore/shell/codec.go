package shell

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/core"
)

// CurrentPayloadVersion is the schema version new book event payloads are
// written with. Version 1 payloads used "amount" where the current shape uses
// "quantity".
const CurrentPayloadVersion = 2

// ErrUnknownEventType is returned when a stored payload carries an event type
// the codec does not know.
var ErrUnknownEventType = errors.New("unknown book event type")

var json = jsoniter.ConfigFastest

type bookEventJSON struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

type bookEventJSONV1 struct {
	Type   string `json:"type"`
	Amount int    `json:"amount"`
}

// BookEventCodec serializes the book event union. JSONCodec cannot handle an
// interface payload, so the mapping between variants and their type tag lives
// here, together with the upcaster chain for historical payload versions.
type BookEventCodec struct {
	chain *eventstore.UpcasterChain
}

// NewBookEventCodec creates the codec with the full upcaster chain
// registered.
func NewBookEventCodec() *BookEventCodec {
	chain := eventstore.NewUpcasterChain(CurrentPayloadVersion).
		RegisterStep(1, upcastAmountToQuantity)

	return &BookEventCodec{chain: chain}
}

// Marshal serializes the event at the current schema version.
func (c *BookEventCodec) Marshal(event core.BookEvent) ([]byte, int, error) {
	var quantity int

	switch evt := event.(type) {
	case core.Bought:
		quantity = evt.Quantity
	case core.Restocked:
		quantity = evt.Quantity
	default:
		return nil, 0, errors.Join(
			eventstore.ErrEncodingEventFailed,
			ErrUnknownEventType,
			fmt.Errorf("event type %q", event.EventType()),
		)
	}

	payload, marshalErr := json.Marshal(bookEventJSON{Type: event.EventType(), Quantity: quantity})
	if marshalErr != nil {
		return nil, 0, errors.Join(eventstore.ErrEncodingEventFailed, marshalErr)
	}

	return payload, CurrentPayloadVersion, nil
}

// Unmarshal upcasts the stored payload to the current version and maps it
// back onto the event union.
func (c *BookEventCodec) Unmarshal(payload []byte, version int) (core.BookEvent, error) {
	upcast, upcastErr := c.chain.Apply(payload, version)
	if upcastErr != nil {
		return nil, upcastErr
	}

	var decoded bookEventJSON
	if unmarshalErr := json.Unmarshal(upcast, &decoded); unmarshalErr != nil {
		return nil, errors.Join(eventstore.ErrDecodingEventFailed, unmarshalErr)
	}

	switch decoded.Type {
	case core.BoughtEventType:
		return core.Bought{Quantity: decoded.Quantity}, nil

	case core.RestockedEventType:
		return core.Restocked{Quantity: decoded.Quantity}, nil

	default:
		return nil, errors.Join(
			eventstore.ErrDecodingEventFailed,
			ErrUnknownEventType,
			fmt.Errorf("event type %q", decoded.Type),
		)
	}
}

// upcastAmountToQuantity translates a version 1 payload, which named the
// copy count "amount", into the current shape.
func upcastAmountToQuantity(payload []byte) ([]byte, error) {
	var old bookEventJSONV1
	if unmarshalErr := json.Unmarshal(payload, &old); unmarshalErr != nil {
		return nil, unmarshalErr
	}

	return json.Marshal(bookEventJSON{Type: old.Type, Quantity: old.Amount})
}

var _ eventstore.Codec[core.BookEvent] = (*BookEventCodec)(nil)
