package eventstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

func Test_LockGuard_Unlock_ReleasesExactlyOnce(t *testing.T) {
	releases := 0
	guard := eventstore.NewLockGuard(func(_ context.Context) error {
		releases++
		return nil
	})

	require.NoError(t, guard.Unlock(context.Background()))
	require.NoError(t, guard.Unlock(context.Background()))
	require.NoError(t, guard.Unlock(context.Background()))

	assert.Equal(t, 1, releases)
}

func Test_LockGuard_Unlock_ReturnsTheReleaseError_OnlyToTheFirstCaller(t *testing.T) {
	releaseErr := errors.New("connection gone")
	guard := eventstore.NewLockGuard(func(_ context.Context) error {
		return releaseErr
	})

	assert.ErrorIs(t, guard.Unlock(context.Background()), releaseErr)
	assert.NoError(t, guard.Unlock(context.Background()))
}

func Test_LockGuard_Unlock_IsSafeForConcurrentUse(t *testing.T) {
	releases := 0
	guard := eventstore.NewLockGuard(func(_ context.Context) error {
		releases++
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = guard.Unlock(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, releases)
}
