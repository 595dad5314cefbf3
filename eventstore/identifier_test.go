package eventstore_test

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

func Test_RandomIDs_GeneratesVersion4UUIDs(t *testing.T) {
	ids := eventstore.RandomIDs()

	id, err := ids.NewID()

	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())
}

func Test_TimeOrderedIDs_GeneratesVersion7UUIDs_ThatSortByCreationTime(t *testing.T) {
	ids := eventstore.TimeOrderedIDs()

	generated := make([]uuid.UUID, 0, 10)
	for i := 0; i < 10; i++ {
		id, err := ids.NewID()
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())

		generated = append(generated, id)
	}

	sorted := sort.SliceIsSorted(generated, func(i, j int) bool {
		return generated[i].String() < generated[j].String()
	})
	assert.True(t, sorted)
}
