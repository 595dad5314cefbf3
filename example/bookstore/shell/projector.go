package shell

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/core"
)

const (
	stockTableName      = "book_stock"
	stockColAggregateID = "aggregate_id"
	stockColLeftover    = "leftover"

	dialectPostgres = "postgres"
)

// StockTableDDL creates the read model table the StockProjector maintains.
const StockTableDDL = `
	CREATE TABLE IF NOT EXISTS book_stock (
		aggregate_id uuid PRIMARY KEY,
		leftover integer NOT NULL
	)`

// StockProjector maintains the book_stock read model inside the append
// transaction: the projected leftover count is never behind the event log.
// It carries no state of its own, so it is replayable.
type StockProjector struct{}

// NewStockProjector creates the projector.
func NewStockProjector() *StockProjector {
	return &StockProjector{}
}

// Name identifies the projector in logs and metrics.
func (p *StockProjector) Name() string {
	return "stock-projector"
}

// Handle applies one event's stock delta to the book's row, creating it from
// the default stock on first contact.
func (p *StockProjector) Handle(ctx context.Context, event eventstore.StoredEvent[core.BookEvent], tx eventstore.Tx) error {
	var delta int

	switch evt := event.Payload.(type) {
	case core.Bought:
		delta = -evt.Quantity
	case core.Restocked:
		delta = evt.Quantity
	default:
		return nil
	}

	upsertStmt := goqu.Dialect(dialectPostgres).
		Insert(stockTableName).
		Cols(stockColAggregateID, stockColLeftover).
		Vals(goqu.Vals{event.AggregateID.String(), core.DefaultLeftover + delta}).
		OnConflict(goqu.DoUpdate(
			stockColAggregateID,
			goqu.Record{stockColLeftover: goqu.L(stockTableName+"."+stockColLeftover+" + ?", delta)},
		))

	sqlQuery, _, toSQLErr := upsertStmt.ToSQL()
	if toSQLErr != nil {
		return errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	_, execErr := tx.Exec(ctx, sqlQuery)

	return execErr
}

// Delete removes the book's row from the read model.
func (p *StockProjector) Delete(ctx context.Context, aggregateID uuid.UUID, tx eventstore.Tx) error {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(stockTableName).
		Where(goqu.Ex{stockColAggregateID: aggregateID.String()})

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	_, execErr := tx.Exec(ctx, sqlQuery)

	return execErr
}

var _ eventstore.TransactionalEventHandler[core.BookEvent] = (*StockProjector)(nil)
