// Package adapters abstracts the concrete database access libraries behind a
// small interface so the engine supports pgxpool, database/sql and sqlx
// uniformly, including transactions and the dedicated session connections
// that back session-scoped advisory locks.
package adapters
