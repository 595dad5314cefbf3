package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
	"github.com/eventforge/aggregate-eventstore-go/eventstore/postgresengine/internal/adapters"
)

const (
	eventTableSuffix = "_events"

	colID             = "id"
	colAggregateID    = "aggregate_id"
	colPayload        = "payload"
	colOccurredOn     = "occurred_on"
	colSequenceNumber = "sequence_number"
	colVersion        = "version"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"
	castTimestamp   = "?::timestamp with time zone"

	pgUniqueViolationCode = "23505"

	sqlAdvisoryLock   = "SELECT pg_advisory_lock(%d)"
	sqlAdvisoryUnlock = "SELECT pg_advisory_unlock(%d)"
)

type sqlQueryString = string

// EventStore is the Postgres-backed event store for one aggregate type.
//
// It owns the aggregate type's append-only log table, the per-instance
// advisory locks, and the handler pipeline configured at construction. The
// zero value is not usable; use one of the constructors.
type EventStore[E any] struct {
	db            adapters.DBAdapter
	aggregateName string
	tableName     string
	codec         eventstore.Codec[E]
	ids           eventstore.IDGenerator

	transactionalHandlers []eventstore.TransactionalEventHandler[E]
	eventHandlers         []eventstore.EventHandler[E]
	eventBuses            []eventstore.EventBus[E]

	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

// NewEventStoreFromPGXPool creates a new EventStore for the given aggregate
// type using a pgx pool with optional configuration.
func NewEventStoreFromPGXPool[E any](
	db *pgxpool.Pool,
	aggregateName string,
	codec eventstore.Codec[E],
	options ...Option[E],
) (*EventStore[E], error) {

	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return buildEventStore[E](adapters.NewPGXAdapter(db), aggregateName, codec, options...)
}

// NewEventStoreFromSQLDB creates a new EventStore for the given aggregate
// type using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB[E any](
	db *sql.DB,
	aggregateName string,
	codec eventstore.Codec[E],
	options ...Option[E],
) (*EventStore[E], error) {

	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return buildEventStore[E](adapters.NewSQLAdapter(db), aggregateName, codec, options...)
}

// NewEventStoreFromSQLX creates a new EventStore for the given aggregate
// type using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX[E any](
	db *sqlx.DB,
	aggregateName string,
	codec eventstore.Codec[E],
	options ...Option[E],
) (*EventStore[E], error) {

	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return buildEventStore[E](adapters.NewSQLXAdapter(db), aggregateName, codec, options...)
}

func buildEventStore[E any](
	db adapters.DBAdapter,
	aggregateName string,
	codec eventstore.Codec[E],
	options ...Option[E],
) (*EventStore[E], error) {

	if aggregateName == "" {
		return nil, eventstore.ErrEmptyAggregateName
	}

	if codec == nil {
		return nil, eventstore.ErrNilCodec
	}

	es := &EventStore[E]{
		db:            db,
		aggregateName: aggregateName,
		tableName:     aggregateName + eventTableSuffix,
		codec:         codec,
		ids:           eventstore.RandomIDs(),
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// TableName returns the name of the events table.
func (es *EventStore[E]) TableName() string {
	return es.tableName
}

// Lock acquires the exclusive-access token for one aggregate instance.
//
// The lock is a named, session-scoped Postgres advisory lock keyed by a hash
// of (aggregate type name, aggregate id), taken on a dedicated connection
// checked out from the pool. Lock blocks until no other session holds the
// key; canceling the context cancels the server-side wait and returns the
// connection without the lock ever being marked acquired.
func (es *EventStore[E]) Lock(ctx context.Context, aggregateID uuid.UUID) (*eventstore.LockGuard, error) {
	start := time.Now()

	session, acquireErr := es.db.AcquireSession(ctx)
	if acquireErr != nil {
		es.logError(ctx, logMsgAcquireConnFailed, acquireErr)
		return nil, errors.Join(eventstore.ErrAcquiringLockFailed, acquireErr)
	}

	key := es.lockKeyFor(aggregateID)

	if lockErr := session.Exec(ctx, fmt.Sprintf(sqlAdvisoryLock, key)); lockErr != nil {
		session.Release()
		es.logError(ctx, logMsgAcquireLockFailed, lockErr, logAttrAggregateID, aggregateID.String())

		return nil, errors.Join(eventstore.ErrAcquiringLockFailed, lockErr)
	}

	es.recordDuration(ctx, metricLockDuration, time.Since(start), operationLock, statusSuccess)

	guard := eventstore.NewLockGuard(func(unlockCtx context.Context) error {
		// the lock must be released even when the caller's context is
		// already canceled
		unlockCtx = context.WithoutCancel(unlockCtx)

		unlockErr := session.Exec(unlockCtx, fmt.Sprintf(sqlAdvisoryUnlock, key))
		session.Release()

		if unlockErr != nil {
			es.logError(unlockCtx, logMsgReleaseLockFailed, unlockErr, logAttrAggregateID, aggregateID.String())
			return errors.Join(eventstore.ErrReleasingLockFailed, unlockErr)
		}

		return nil
	})

	return guard, nil
}

// Load retrieves one aggregate instance's events ordered by sequence number
// ascending, decoding each payload through the configured codec. An empty
// result signals a new aggregate.
func (es *EventStore[E]) Load(ctx context.Context, aggregateID uuid.UUID) ([]eventstore.StoredEvent[E], error) {
	ctx, span := es.startSpan(ctx, operationLoad, aggregateID.String())

	sqlQuery, buildErr := es.buildSelectQuery(aggregateID)
	if buildErr != nil {
		es.finishSpan(span, statusError)
		return nil, buildErr
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logSQLWithDuration(ctx, sqlQuery, operationLoad, duration)

	if queryErr != nil {
		es.finishSpan(span, statusError)
		es.recordDuration(ctx, metricQueryDuration, duration, operationLoad, statusError)
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, queryErr)
	}
	defer es.closeRows(ctx, rows)

	storedEvents := make([]eventstore.StoredEvent[E], 0)

	for rows.Next() {
		storedEvent, scanErr := scanStoredEvent(rows, es.codec)
		if scanErr != nil {
			es.finishSpan(span, statusError)
			es.logError(ctx, logMsgScanRowFailed, scanErr)

			return nil, scanErr
		}

		storedEvents = append(storedEvents, storedEvent)
	}

	if iterErr := rows.Err(); iterErr != nil {
		es.finishSpan(span, statusError)
		es.logError(ctx, logMsgDBQueryFailed, iterErr, logAttrQuery, sqlQuery)

		return nil, errors.Join(eventstore.ErrQueryingEventsFailed, iterErr)
	}

	es.finishSpan(span, statusSuccess)
	es.recordDuration(ctx, metricQueryDuration, duration, operationLoad, statusSuccess)
	es.logOperation(ctx, logMsgEventsLoaded,
		logAttrAggregateID, aggregateID.String(),
		logAttrEventCount, len(storedEvents),
		logAttrDurationMS, toMilliseconds(duration))

	return storedEvents, nil
}

// Append persists the given events for one aggregate instance.
//
// Sequence numbers priorSequenceNumber+1 .. priorSequenceNumber+len(events)
// are assigned in list order. All inserts and all transactional event handler
// invocations share one transaction: any failure rolls everything back and
// none of the events become visible. After a successful commit the token is
// released, then the eventual handlers and bus sinks run once per event;
// their failures are logged and swallowed.
func (es *EventStore[E]) Append(
	ctx context.Context,
	aggregateID uuid.UUID,
	token *eventstore.LockGuard,
	priorSequenceNumber eventstore.SequenceNumber,
	events []E,
) ([]eventstore.StoredEvent[E], error) {

	if len(events) == 0 {
		return nil, nil
	}

	ctx, span := es.startSpan(ctx, operationAppend, aggregateID.String())

	storedEvents, sqlQuery, buildErr := es.buildInsert(aggregateID, priorSequenceNumber, events)
	if buildErr != nil {
		es.finishSpan(span, statusError)
		return nil, buildErr
	}

	start := time.Now()

	tx, beginErr := es.db.Begin(ctx)
	if beginErr != nil {
		es.finishSpan(span, statusError)
		es.logError(ctx, logMsgBeginTxFailed, beginErr)

		return nil, errors.Join(eventstore.ErrBeginningTransactionFailed, beginErr)
	}

	committed := false
	defer func() {
		if !committed {
			es.rollback(ctx, tx)
		}
	}()

	if _, execErr := tx.Exec(ctx, sqlQuery); execErr != nil {
		es.finishSpan(span, statusError)
		es.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		if isUniqueViolation(execErr) {
			return nil, errors.Join(eventstore.ErrSequenceConflict, execErr)
		}

		return nil, errors.Join(eventstore.ErrAppendingEventsFailed, execErr)
	}

	if handlerErr := es.runTransactionalHandlers(ctx, storedEvents, tx); handlerErr != nil {
		es.finishSpan(span, statusError)
		return nil, handlerErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		es.finishSpan(span, statusError)
		es.logError(ctx, logMsgCommitTxFailed, commitErr)

		return nil, errors.Join(eventstore.ErrCommittingTransactionFailed, commitErr)
	}

	committed = true
	duration := time.Since(start)

	// the lock must go before the eventual handlers run: they may want to
	// load the very same aggregate, which would deadlock otherwise
	es.releaseToken(ctx, token, aggregateID)

	es.runEventualHandlers(ctx, storedEvents)
	es.publishToBuses(ctx, storedEvents)

	es.finishSpan(span, statusSuccess)
	es.recordDuration(ctx, metricAppendDuration, duration, operationAppend, statusSuccess)
	es.logOperation(ctx, logMsgEventsAppended,
		logAttrAggregateID, aggregateID.String(),
		logAttrEventCount, len(storedEvents),
		logAttrDurationMS, toMilliseconds(duration))

	return storedEvents, nil
}

// Delete removes one aggregate instance's full history.
//
// The delete and every transactional event handler's delete operation share
// one transaction with the same all-or-nothing semantics as Append. After
// commit the token is released and the eventual handlers' delete operations
// run, their failures logged and swallowed.
func (es *EventStore[E]) Delete(ctx context.Context, aggregateID uuid.UUID, token *eventstore.LockGuard) error {
	ctx, span := es.startSpan(ctx, operationDelete, aggregateID.String())

	sqlQuery, buildErr := es.buildDeleteQuery(aggregateID)
	if buildErr != nil {
		es.finishSpan(span, statusError)
		return buildErr
	}

	start := time.Now()

	tx, beginErr := es.db.Begin(ctx)
	if beginErr != nil {
		es.finishSpan(span, statusError)
		es.logError(ctx, logMsgBeginTxFailed, beginErr)

		return errors.Join(eventstore.ErrBeginningTransactionFailed, beginErr)
	}

	committed := false
	defer func() {
		if !committed {
			es.rollback(ctx, tx)
		}
	}()

	if _, execErr := tx.Exec(ctx, sqlQuery); execErr != nil {
		es.finishSpan(span, statusError)
		es.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)

		return errors.Join(eventstore.ErrDeletingEventsFailed, execErr)
	}

	for _, handler := range es.transactionalHandlers {
		if deleteErr := handler.Delete(ctx, aggregateID, tx); deleteErr != nil {
			es.finishSpan(span, statusError)
			es.logError(ctx, logMsgTxHandlerDeleteFailed, deleteErr,
				logAttrHandler, handler.Name(),
				logAttrAggregateID, aggregateID.String())

			return errors.Join(eventstore.ErrTransactionalHandlerFailed, deleteErr)
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		es.finishSpan(span, statusError)
		es.logError(ctx, logMsgCommitTxFailed, commitErr)

		return errors.Join(eventstore.ErrCommittingTransactionFailed, commitErr)
	}

	committed = true

	es.releaseToken(ctx, token, aggregateID)

	for _, handler := range es.eventHandlers {
		if deleteErr := handler.Delete(ctx, aggregateID); deleteErr != nil {
			es.logWarn(ctx, logMsgHandlerDeleteFailed,
				logAttrHandler, handler.Name(),
				logAttrAggregateID, aggregateID.String(),
				logAttrError, deleteErr.Error())
		}
	}

	es.finishSpan(span, statusSuccess)
	es.recordDuration(ctx, metricDeleteDuration, time.Since(start), operationDelete, statusSuccess)
	es.logOperation(ctx, logMsgAggregateDeleted, logAttrAggregateID, aggregateID.String())

	return nil
}

// runTransactionalHandlers invokes every transactional handler once per
// event, in registration order, inside the append's transaction.
func (es *EventStore[E]) runTransactionalHandlers(
	ctx context.Context,
	storedEvents []eventstore.StoredEvent[E],
	tx adapters.DBTx,
) error {

	for _, storedEvent := range storedEvents {
		for _, handler := range es.transactionalHandlers {
			if handleErr := handler.Handle(ctx, storedEvent, tx); handleErr != nil {
				es.logError(ctx, logMsgTxHandlerFailed, handleErr,
					logAttrHandler, handler.Name(),
					logAttrEventID, storedEvent.ID.String(),
					logAttrAggregateID, storedEvent.AggregateID.String())

				return errors.Join(eventstore.ErrTransactionalHandlerFailed, handleErr)
			}
		}
	}

	return nil
}

// runEventualHandlers invokes every eventual handler once per committed
// event. Failures are logged and swallowed; the read side stays inconsistent
// until a rebuild.
func (es *EventStore[E]) runEventualHandlers(ctx context.Context, storedEvents []eventstore.StoredEvent[E]) {
	for _, storedEvent := range storedEvents {
		for _, handler := range es.eventHandlers {
			if handleErr := handler.Handle(ctx, storedEvent); handleErr != nil {
				es.recordCounter(ctx, metricHandlerFailures, operationAppend, handler.Name())
				es.logWarn(ctx, logMsgHandlerFailed,
					logAttrHandler, handler.Name(),
					logAttrEventID, storedEvent.ID.String(),
					logAttrError, handleErr.Error())
			}
		}
	}
}

// publishToBuses publishes every committed event to every bus sink.
// Delivery is best-effort and at-most-once; failures are logged and swallowed.
func (es *EventStore[E]) publishToBuses(ctx context.Context, storedEvents []eventstore.StoredEvent[E]) {
	for _, bus := range es.eventBuses {
		for _, storedEvent := range storedEvents {
			if publishErr := bus.Publish(ctx, storedEvent); publishErr != nil {
				es.recordCounter(ctx, metricPublishFailures, operationAppend, bus.Name())
				es.logWarn(ctx, logMsgPublishFailed,
					logAttrBus, bus.Name(),
					logAttrEventID, storedEvent.ID.String(),
					logAttrError, publishErr.Error())
			}
		}
	}
}

func (es *EventStore[E]) releaseToken(ctx context.Context, token *eventstore.LockGuard, aggregateID uuid.UUID) {
	if token == nil {
		return
	}

	if unlockErr := token.Unlock(ctx); unlockErr != nil {
		es.logWarn(ctx, logMsgReleaseLockFailed,
			logAttrAggregateID, aggregateID.String(),
			logAttrError, unlockErr.Error())
	}
}

func (es *EventStore[E]) rollback(ctx context.Context, tx adapters.DBTx) {
	if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
		es.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
	}
}

func (es *EventStore[E]) buildSelectQuery(aggregateID uuid.UUID) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.tableName).
		Select(colID, colAggregateID, colPayload, colOccurredOn, colSequenceNumber, colVersion).
		Where(goqu.Ex{colAggregateID: aggregateID.String()}).
		Order(goqu.I(colSequenceNumber).Asc())

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore[E]) buildDeleteQuery(aggregateID uuid.UUID) (sqlQueryString, error) {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(es.tableName).
		Where(goqu.Ex{colAggregateID: aggregateID.String()})

	sqlQuery, _, toSQLErr := deleteStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// buildInsert assigns ids and sequence numbers, encodes the payloads and
// builds one multi-row insert statement for all events.
func (es *EventStore[E]) buildInsert(
	aggregateID uuid.UUID,
	priorSequenceNumber eventstore.SequenceNumber,
	events []E,
) ([]eventstore.StoredEvent[E], sqlQueryString, error) {

	occurredOn := time.Now().UTC()
	storedEvents := make([]eventstore.StoredEvent[E], 0, len(events))
	insertRows := make([][]interface{}, 0, len(events))

	for i, event := range events {
		payload, version, marshalErr := es.codec.Marshal(event)
		if marshalErr != nil {
			return nil, "", marshalErr
		}

		eventID, idErr := es.ids.NewID()
		if idErr != nil {
			return nil, "", idErr
		}

		sequenceNumber := priorSequenceNumber + eventstore.SequenceNumber(i) + 1

		storedEvents = append(storedEvents, eventstore.StoredEvent[E]{
			ID:             eventID,
			AggregateID:    aggregateID,
			Payload:        event,
			OccurredOn:     occurredOn,
			SequenceNumber: sequenceNumber,
			Version:        version,
		})

		insertRows = append(insertRows, goqu.Vals{
			eventID.String(),
			aggregateID.String(),
			goqu.L(castJsonb, string(payload)),
			goqu.L(castTimestamp, occurredOn),
			sequenceNumber,
			version,
		})
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.tableName).
		Cols(colID, colAggregateID, colPayload, colOccurredOn, colSequenceNumber, colVersion).
		Vals(insertRows...)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return nil, "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return storedEvents, sqlQuery, nil
}

// scanStoredEvent reads one row in the canonical column order and decodes the
// payload through the codec, applying upcasting.
func scanStoredEvent[E any](rows eventstore.Rows, codec eventstore.Codec[E]) (eventstore.StoredEvent[E], error) {
	var empty eventstore.StoredEvent[E]
	var idRaw, aggregateIDRaw string
	var payload []byte
	var occurredOn time.Time
	var sequenceNumber int64
	var version int

	if scanErr := rows.Scan(&idRaw, &aggregateIDRaw, &payload, &occurredOn, &sequenceNumber, &version); scanErr != nil {
		return empty, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
	}

	eventID, idErr := uuid.Parse(idRaw)
	if idErr != nil {
		return empty, errors.Join(eventstore.ErrScanningDBRowFailed, idErr)
	}

	aggregateID, aggIDErr := uuid.Parse(aggregateIDRaw)
	if aggIDErr != nil {
		return empty, errors.Join(eventstore.ErrScanningDBRowFailed, aggIDErr)
	}

	event, decodeErr := codec.Unmarshal(payload, version)
	if decodeErr != nil {
		return empty, decodeErr
	}

	return eventstore.StoredEvent[E]{
		ID:             eventID,
		AggregateID:    aggregateID,
		Payload:        event,
		OccurredOn:     occurredOn,
		SequenceNumber: sequenceNumber,
		Version:        version,
	}, nil
}

func (es *EventStore[E]) closeRows(ctx context.Context, rows eventstore.Rows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// lockKeyFor derives the advisory lock key from the aggregate type name and
// the instance id, so instances of different aggregate types never contend.
func (es *EventStore[E]) lockKeyFor(aggregateID uuid.UUID) int64 {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(es.aggregateName))
	_, _ = hash.Write([]byte{':'})
	_, _ = hash.Write(aggregateID[:])

	return int64(hash.Sum64())
}

// isUniqueViolation detects a Postgres unique constraint violation for both
// the pgx and the lib/pq driver.
func isUniqueViolation(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgUniqueViolationCode
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolationCode
	}

	return false
}
