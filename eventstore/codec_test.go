package eventstore_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

type somethingHappened struct {
	What  string `json:"what"`
	Count int    `json:"count"`
}

func Test_JSONCodec_RoundTripsConcretePayloads(t *testing.T) {
	codec := eventstore.NewJSONCodec[somethingHappened]()
	original := somethingHappened{What: "delivery", Count: 3}

	payload, version, marshalErr := codec.Marshal(original)
	require.NoError(t, marshalErr)
	assert.Equal(t, 1, version)

	decoded, unmarshalErr := codec.Unmarshal(payload, version)
	require.NoError(t, unmarshalErr)
	assert.Equal(t, original, decoded)
}

func Test_JSONCodec_WithUpcasting_TranslatesOldPayloads(t *testing.T) {
	// version 1 named the field "amount"; the chain renames it on the way out
	chain := eventstore.NewUpcasterChain(2).
		RegisterStep(1, func(payload []byte) ([]byte, error) {
			return []byte(`{"what": "delivery", "count": 5}`), nil
		})
	codec := eventstore.NewJSONCodecWithUpcasting[somethingHappened](chain)

	decoded, unmarshalErr := codec.Unmarshal([]byte(`{"what": "delivery", "amount": 5}`), 1)

	require.NoError(t, unmarshalErr)
	assert.Equal(t, somethingHappened{What: "delivery", Count: 5}, decoded)
}

func Test_JSONCodec_WithUpcasting_WritesAtTheChainsCurrentVersion(t *testing.T) {
	chain := eventstore.NewUpcasterChain(3).
		RegisterStep(1, func(p []byte) ([]byte, error) { return p, nil }).
		RegisterStep(2, func(p []byte) ([]byte, error) { return p, nil })
	codec := eventstore.NewJSONCodecWithUpcasting[somethingHappened](chain)

	_, version, marshalErr := codec.Marshal(somethingHappened{})

	require.NoError(t, marshalErr)
	assert.Equal(t, 3, version)
}

func Test_UpcasterChain_AppliesStepsInOrder(t *testing.T) {
	var applied []int
	chain := eventstore.NewUpcasterChain(3).
		RegisterStep(1, func(p []byte) ([]byte, error) {
			applied = append(applied, 1)
			return p, nil
		}).
		RegisterStep(2, func(p []byte) ([]byte, error) {
			applied = append(applied, 2)
			return p, nil
		})

	_, applyErr := chain.Apply([]byte(`{}`), 1)

	require.NoError(t, applyErr)
	assert.Equal(t, []int{1, 2}, applied)
}

func Test_UpcasterChain_CurrentVersionPayloads_PassThroughUntouched(t *testing.T) {
	chain := eventstore.NewUpcasterChain(2).
		RegisterStep(1, func(p []byte) ([]byte, error) {
			t.Fatal("step for version 1 must not run for a current payload")
			return p, nil
		})

	payload, applyErr := chain.Apply([]byte(`{"count": 1}`), 2)

	require.NoError(t, applyErr)
	assert.JSONEq(t, `{"count": 1}`, string(payload))
}

func Test_UpcasterChain_FailsLoudly_WhenAStepIsMissing(t *testing.T) {
	chain := eventstore.NewUpcasterChain(3).
		RegisterStep(1, func(p []byte) ([]byte, error) { return p, nil })

	// version 2 has no registered successor
	_, applyErr := chain.Apply([]byte(`{}`), 1)

	assert.ErrorIs(t, applyErr, eventstore.ErrMissingUpcaster)
}

func Test_UpcasterChain_WrapsStepFailures_AsDecodingErrors(t *testing.T) {
	stepErr := errors.New("malformed historical payload")
	chain := eventstore.NewUpcasterChain(2).
		RegisterStep(1, func(p []byte) ([]byte, error) { return nil, stepErr })

	_, applyErr := chain.Apply([]byte(`{}`), 1)

	assert.ErrorIs(t, applyErr, eventstore.ErrDecodingEventFailed)
	assert.ErrorIs(t, applyErr, stepErr)
}
