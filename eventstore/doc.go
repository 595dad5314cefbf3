// Package eventstore provides the core abstractions for event-sourced write
// models: aggregates with pure decision and fold logic, stored events, the
// store contract with per-aggregate exclusive access, the handler pipeline
// (transactional, eventual, bus), payload codecs with upcasting, and the
// AggregateManager that ties them together.
//
// The concrete Postgres-backed store lives in the postgresengine subpackage.
//
// Typical usage:
//
//	codec := eventstore.NewJSONCodec[StockChanged]()
//	store, err := postgresengine.NewEventStoreFromPGXPool(pool, "stock", codec)
//	if err != nil {
//		// handle error
//	}
//
//	manager := eventstore.NewAggregateManager[StockState, StockCommand, StockChanged](Stock{}, store)
//	state, err := manager.HandleCommand(ctx, stockID, AddStock{Quantity: 3})
//
// Tagged-union event payloads (an interface with several variants) need a
// hand-written Codec; see example/bookstore for one with an upcaster chain.
package eventstore
