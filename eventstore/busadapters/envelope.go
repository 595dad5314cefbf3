// Package busadapters implements eventstore.EventBus sinks for common
// message brokers. Every sink serializes stored events into the same JSON
// envelope and keys messages by aggregate id, so per-aggregate ordering
// survives partitioned transports.
//
// Delivery is at-most-once: the store publishes after commit and swallows
// publish failures, so consumers needing completeness should rebuild from
// the log instead of relying on the bus.
package busadapters

import (
	"encoding/json"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

var marshal = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNilBrokerConnection = errors.New("broker connection must not be nil")
var ErrEmptyBusName = errors.New("empty bus name supplied")
var ErrEmptyDestination = errors.New("empty bus destination supplied")

// envelope is the wire format shared by all bus sinks. The payload is the
// codec-encoded event, carried verbatim together with its payload version so
// consumers can run the same upcasters as the store.
type envelope struct {
	EventID        string          `json:"event_id"`
	AggregateID    string          `json:"aggregate_id"`
	OccurredOn     time.Time       `json:"occurred_on"`
	SequenceNumber int64           `json:"sequence_number"`
	Version        int             `json:"version"`
	Payload        json.RawMessage `json:"payload"`
}

func encodeEnvelope[E any](event eventstore.StoredEvent[E], codec eventstore.Codec[E]) ([]byte, error) {
	payload, version, marshalErr := codec.Marshal(event.Payload)
	if marshalErr != nil {
		return nil, marshalErr
	}

	body, encodeErr := marshal.Marshal(envelope{
		EventID:        event.ID.String(),
		AggregateID:    event.AggregateID.String(),
		OccurredOn:     event.OccurredOn,
		SequenceNumber: event.SequenceNumber,
		Version:        version,
		Payload:        payload,
	})
	if encodeErr != nil {
		return nil, errors.Join(eventstore.ErrEncodingEventFailed, encodeErr)
	}

	return body, nil
}
