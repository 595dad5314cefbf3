package adapters

import (
	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB. sqlx wraps database/sql, so
// the adapter delegates to an SQLAdapter over the underlying handles.
type SQLXAdapter struct {
	*SQLAdapter
}

// NewSQLXAdapter creates a new sqlx adapter.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{SQLAdapter: NewSQLAdapter(db.DB)}
}

// NewSQLXAdapterWithReplica creates a new sqlx adapter with a replica for
// reads that allow eventual consistency.
func NewSQLXAdapterWithReplica(db *sqlx.DB, replica *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{SQLAdapter: NewSQLAdapterWithReplica(db.DB, replica.DB)}
}
