package adapters

import (
	"context"
	"database/sql"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// SQLAdapter implements DBAdapter for database/sql (used with lib/pq).
type SQLAdapter struct {
	db        *sql.DB
	replicaDB *sql.DB // optional replica for read operations
}

// NewSQLAdapter creates a new database/sql adapter.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// NewSQLAdapterWithReplica creates a new database/sql adapter with a replica
// for reads that allow eventual consistency.
func NewSQLAdapterWithReplica(db *sql.DB, replica *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, replicaDB: replica}
}

// Query executes a query, routed to the replica when one is configured and
// the context allows eventually consistent reads.
func (s *SQLAdapter) Query(ctx context.Context, query string) (eventstore.Rows, error) {
	db := s.db

	if s.replicaDB != nil && eventstore.GetConsistencyLevel(ctx) == eventstore.EventualConsistency {
		db = s.replicaDB
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// Exec executes a statement on the primary.
func (s *SQLAdapter) Exec(ctx context.Context, query string) (int64, error) {
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// Begin opens a transaction on the primary.
func (s *SQLAdapter) Begin(ctx context.Context) (DBTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &sqlTx{tx: tx}, nil
}

// AcquireSession checks out one connection from the primary.
func (s *SQLAdapter) AcquireSession(ctx context.Context) (DBSession, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlSession{conn: conn}, nil
}

// sqlTx wraps *sql.Tx to implement the DBTx interface.
type sqlTx struct {
	tx *sql.Tx
}

func (s *sqlTx) Exec(ctx context.Context, query string) (int64, error) {
	result, err := s.tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (s *sqlTx) Query(ctx context.Context, query string) (eventstore.Rows, error) {
	rows, err := s.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *sqlTx) Commit(_ context.Context) error {
	return s.tx.Commit()
}

func (s *sqlTx) Rollback(_ context.Context) error {
	return s.tx.Rollback()
}

// sqlSession wraps a checked-out *sql.Conn.
type sqlSession struct {
	conn *sql.Conn
}

func (s *sqlSession) Exec(ctx context.Context, query string) error {
	_, err := s.conn.ExecContext(ctx, query)
	return err
}

func (s *sqlSession) Release() {
	_ = s.conn.Close()
}
