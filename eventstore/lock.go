package eventstore

import (
	"context"
	"sync"
)

// LockGuard is the exclusive-access token for one aggregate instance.
//
// At most one live guard per aggregate id exists system-wide. The guard owns
// the resources backing the lock (typically a checked-out session connection
// holding an advisory lock); Unlock releases them exactly once, no matter how
// often it is called. Callers should defer Unlock right after acquisition so
// that every exit path, including error and cancellation, releases the lock.
type LockGuard struct {
	once   sync.Once
	unlock func(ctx context.Context) error
}

// NewLockGuard wraps the given release function into a guard with
// exactly-once semantics. The release function must succeed in releasing its
// resources even when the supplied context is already canceled.
func NewLockGuard(unlock func(ctx context.Context) error) *LockGuard {
	return &LockGuard{unlock: unlock}
}

// Unlock releases the lock. The first call runs the release function and
// returns its result; every later call is a no-op returning nil.
func (g *LockGuard) Unlock(ctx context.Context) error {
	var err error

	g.once.Do(func() {
		err = g.unlock(ctx)
	})

	return err
}
