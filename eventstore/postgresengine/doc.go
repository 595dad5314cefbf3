// Package postgresengine provides the PostgreSQL implementation of the
// eventstore interfaces.
//
// Each aggregate type gets its own append-only events table with gapless
// per-instance sequence numbers. Writers coordinate through session-scoped
// advisory locks, and the handler pipeline (transactional handlers inside
// the append transaction, eventual handlers and bus sinks after commit) is
// wired in through functional options.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX) with optional
//     read replicas routed by consistency level
//   - Per-aggregate pessimistic locking via Postgres advisory locks
//   - All-or-nothing appends covering the transactional read models
//   - Projection rebuilds: all at once, per aggregate id, or merged across
//     several stores
//
// Usage example:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		"book",
//		codec,
//		postgresengine.WithTransactionalEventHandlers(stockProjector),
//		postgresengine.WithLogger(logger),
//	)
//
//	token, _ := store.Lock(ctx, bookID)
//	defer token.Unlock(ctx)
//
//	events, _ := store.Load(ctx, bookID)
//	stored, _ := store.Append(ctx, bookID, token, priorSequence, newEvents)
package postgresengine
