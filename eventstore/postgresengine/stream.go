package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// EventStream is a cursor over the full events table. It keeps one row in
// memory at a time, so a stream over millions of events stays flat in memory.
// Callers must Close it.
type EventStream[E any] struct {
	rows    eventstore.Rows
	codec   eventstore.Codec[E]
	current eventstore.StoredEvent[E]
	err     error
}

// Next advances the cursor. It returns false when the stream is exhausted or
// an iteration or scan error occurred; check Err after the loop.
func (s *EventStream[E]) Next() bool {
	if s.err != nil {
		return false
	}

	if !s.rows.Next() {
		// a driver failure mid-stream also ends iteration; it must not look
		// like a clean end of the result set
		if iterErr := s.rows.Err(); iterErr != nil {
			s.err = errors.Join(eventstore.ErrQueryingEventsFailed, iterErr)
		}

		return false
	}

	storedEvent, scanErr := scanStoredEvent(s.rows, s.codec)
	if scanErr != nil {
		s.err = scanErr
		return false
	}

	s.current = storedEvent

	return true
}

// Event returns the stored event the cursor currently points at. Only valid
// after a Next call that returned true.
func (s *EventStream[E]) Event() eventstore.StoredEvent[E] {
	return s.current
}

// Err returns the first error encountered while iterating, if any.
func (s *EventStream[E]) Err() error {
	return s.err
}

// Close releases the underlying result set.
func (s *EventStream[E]) Close() error {
	return s.rows.Close()
}

// StreamAll opens a cursor over every event of every aggregate instance.
//
// StreamOrderByAggregate groups events per instance (aggregate id, then
// sequence number); StreamOrderByOccurrence interleaves all instances by
// storage time, with sequence number breaking ties within an instance.
func (es *EventStore[E]) StreamAll(ctx context.Context, order eventstore.StreamOrder) (*EventStream[E], error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.tableName).
		Select(colID, colAggregateID, colPayload, colOccurredOn, colSequenceNumber, colVersion)

	switch order {
	case eventstore.StreamOrderByOccurrence:
		selectStmt = selectStmt.Order(goqu.I(colOccurredOn).Asc(), goqu.I(colSequenceNumber).Asc())
	default:
		selectStmt = selectStmt.Order(goqu.I(colAggregateID).Asc(), goqu.I(colSequenceNumber).Asc())
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := es.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}

	return &EventStream[E]{rows: rows, codec: es.codec}, nil
}

// AggregateIDs returns the distinct ids of every aggregate instance with at
// least one stored event.
func (es *EventStore[E]) AggregateIDs(ctx context.Context) ([]uuid.UUID, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.tableName).
		Select(colAggregateID).
		Distinct().
		Order(goqu.I(colAggregateID).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return nil, errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	rows, queryErr := es.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	var aggregateIDs []uuid.UUID

	for rows.Next() {
		var idRaw string
		if scanErr := rows.Scan(&idRaw); scanErr != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}

		aggregateID, parseErr := uuid.Parse(idRaw)
		if parseErr != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, parseErr)
		}

		aggregateIDs = append(aggregateIDs, aggregateID)
	}

	if iterErr := rows.Err(); iterErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, iterErr, logAttrQuery, sqlQuery)

		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, iterErr)
	}

	return aggregateIDs, nil
}
