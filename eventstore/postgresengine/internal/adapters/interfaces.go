package adapters

import (
	"context"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// DBAdapter defines the database operations needed by the event store.
// Implementations exist for pgxpool.Pool, database/sql and sqlx.
type DBAdapter interface {
	// Query executes a read-only query. Implementations with a configured
	// replica route it there when the context allows eventual consistency.
	Query(ctx context.Context, query string) (eventstore.Rows, error)

	// Exec executes a statement on the primary and returns rows affected.
	Exec(ctx context.Context, query string) (int64, error)

	// Begin opens a transaction on the primary.
	Begin(ctx context.Context) (DBTx, error)

	// AcquireSession checks out one dedicated connection, used for
	// session-scoped advisory locks. The caller must Release it.
	AcquireSession(ctx context.Context) (DBSession, error)
}

// DBTx is a transaction. It satisfies eventstore.Tx so it can be handed to
// transactional event handlers.
type DBTx interface {
	eventstore.Tx
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBSession is a single checked-out connection.
type DBSession interface {
	Exec(ctx context.Context, query string) error
	Release()
}
