package eventstore

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Codec serializes event payloads for storage and deserializes them back,
// translating old payload versions to the current shape on the way out
// (upcasting). Stored payloads are never mutated; the translation is applied
// identically on every load.
type Codec[E any] interface {
	// Marshal serializes the event and returns the schema version it was
	// written with.
	Marshal(event E) (payload []byte, version int, err error)

	// Unmarshal deserializes a stored payload written with the given version
	// into the current event shape.
	Unmarshal(payload []byte, version int) (E, error)
}

// UpcastFunc translates a raw payload from one schema version to the next.
// It must be pure: no I/O, same output for the same input.
type UpcastFunc func(payload []byte) ([]byte, error)

// UpcasterChain holds the version-keyed chain of payload transformations.
// The chain must be total for all versions ever written: loading a payload
// whose version has no registered successor fails loudly.
type UpcasterChain struct {
	currentVersion int
	steps          map[int]UpcastFunc
}

// NewUpcasterChain creates a chain targeting the given current version.
// Register one step per historical version with RegisterStep.
func NewUpcasterChain(currentVersion int) *UpcasterChain {
	return &UpcasterChain{
		currentVersion: currentVersion,
		steps:          make(map[int]UpcastFunc),
	}
}

// RegisterStep adds the transformation from fromVersion to fromVersion+1.
// It returns the chain for registration chaining.
func (c *UpcasterChain) RegisterStep(fromVersion int, step UpcastFunc) *UpcasterChain {
	c.steps[fromVersion] = step
	return c
}

// CurrentVersion returns the version new payloads are written with.
func (c *UpcasterChain) CurrentVersion() int {
	return c.currentVersion
}

// Apply runs the chain from the stored version up to the current version.
func (c *UpcasterChain) Apply(payload []byte, version int) ([]byte, error) {
	for v := version; v < c.currentVersion; v++ {
		step, ok := c.steps[v]
		if !ok {
			return nil, errors.Join(
				ErrMissingUpcaster,
				fmt.Errorf("version %d has no registered successor", v),
			)
		}

		upcast, upcastErr := step(payload)
		if upcastErr != nil {
			return nil, errors.Join(ErrDecodingEventFailed, upcastErr)
		}

		payload = upcast
	}

	return payload, nil
}

// JSONCodec is the default Codec for concrete payload types, built on
// json-iterator. Tagged-union payloads (an interface with several event
// variants) need a hand-written Codec; such codecs can still embed an
// UpcasterChain for version translation.
type JSONCodec[E any] struct {
	chain *UpcasterChain
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewJSONCodec creates a codec writing version 1 payloads with no upcasters.
func NewJSONCodec[E any]() *JSONCodec[E] {
	return &JSONCodec[E]{chain: NewUpcasterChain(1)}
}

// NewJSONCodecWithUpcasting creates a codec writing payloads at the chain's
// current version and translating older stored payloads through the chain.
func NewJSONCodecWithUpcasting[E any](chain *UpcasterChain) *JSONCodec[E] {
	return &JSONCodec[E]{chain: chain}
}

// Marshal serializes the event as JSON at the current schema version.
func (c *JSONCodec[E]) Marshal(event E) ([]byte, int, error) {
	payload, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		return nil, 0, errors.Join(ErrEncodingEventFailed, marshalErr)
	}

	return payload, c.chain.CurrentVersion(), nil
}

// Unmarshal upcasts the stored payload to the current version and
// deserializes it.
func (c *JSONCodec[E]) Unmarshal(payload []byte, version int) (E, error) {
	var event E

	upcast, upcastErr := c.chain.Apply(payload, version)
	if upcastErr != nil {
		return event, upcastErr
	}

	if unmarshalErr := json.Unmarshal(upcast, &event); unmarshalErr != nil {
		return event, errors.Join(ErrDecodingEventFailed, unmarshalErr)
	}

	return event, nil
}
