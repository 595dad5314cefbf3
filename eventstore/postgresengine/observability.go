package postgresengine

import (
	"context"
	"time"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// Log messages used by the store. Kept as constants so log-based assertions
// in tests stay stable.
const (
	logMsgAcquireConnFailed     = "eventstore: acquiring database connection failed"
	logMsgAcquireLockFailed     = "eventstore: acquiring advisory lock failed"
	logMsgReleaseLockFailed     = "eventstore: releasing advisory lock failed"
	logMsgDBQueryFailed         = "eventstore: database query failed"
	logMsgDBExecFailed          = "eventstore: database exec failed"
	logMsgScanRowFailed         = "eventstore: scanning database row failed"
	logMsgBeginTxFailed         = "eventstore: beginning transaction failed"
	logMsgCommitTxFailed        = "eventstore: committing transaction failed"
	logMsgRollbackFailed        = "eventstore: rolling back transaction failed"
	logMsgCloseRowsFailed       = "eventstore: closing rows failed"
	logMsgTxHandlerFailed       = "eventstore: transactional event handler failed"
	logMsgTxHandlerDeleteFailed = "eventstore: transactional event handler delete failed"
	logMsgHandlerFailed         = "eventstore: event handler failed"
	logMsgHandlerDeleteFailed   = "eventstore: event handler delete failed"
	logMsgPublishFailed         = "eventstore: publishing event to bus failed"
	logMsgEventsLoaded          = "eventstore: events loaded"
	logMsgEventsAppended        = "eventstore: events appended"
	logMsgAggregateDeleted      = "eventstore: aggregate deleted"
	logMsgSQLExecuted           = "eventstore: sql executed"
)

// Structured log attribute keys.
const (
	logAttrAggregateID = "aggregate_id"
	logAttrEventID     = "event_id"
	logAttrEventCount  = "event_count"
	logAttrHandler     = "handler"
	logAttrBus         = "bus"
	logAttrQuery       = "query"
	logAttrOperation   = "operation"
	logAttrDurationMS  = "duration_ms"
	logAttrError       = "error"
)

// Metric names and label values.
const (
	metricLockDuration    = "eventstore_lock_duration_seconds"
	metricQueryDuration   = "eventstore_query_duration_seconds"
	metricAppendDuration  = "eventstore_append_duration_seconds"
	metricDeleteDuration  = "eventstore_delete_duration_seconds"
	metricHandlerFailures = "eventstore_handler_failures_total"
	metricPublishFailures = "eventstore_publish_failures_total"

	operationLock   = "lock"
	operationLoad   = "load"
	operationAppend = "append"
	operationDelete = "delete"

	statusSuccess = "success"
	statusError   = "error"

	labelOperation = "operation"
	labelStatus    = "status"
	labelSink      = "sink"
	labelAggregate = "aggregate"
)

func toMilliseconds(duration time.Duration) float64 {
	return float64(duration.Nanoseconds()) / 1e6
}

func (es *EventStore[E]) logSQLWithDuration(ctx context.Context, sqlQuery sqlQueryString, operation string, duration time.Duration) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted,
			logAttrOperation, operation,
			logAttrDurationMS, toMilliseconds(duration),
			logAttrQuery, sqlQuery)
	case es.logger != nil:
		es.logger.Debug(logMsgSQLExecuted,
			logAttrOperation, operation,
			logAttrDurationMS, toMilliseconds(duration),
			logAttrQuery, sqlQuery)
	}
}

func (es *EventStore[E]) logOperation(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.InfoContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Info(msg, args...)
	}
}

func (es *EventStore[E]) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.WarnContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Warn(msg, args...)
	}
}

func (es *EventStore[E]) logError(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, logAttrError, err.Error())

	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.ErrorContext(ctx, msg, args...)
	case es.logger != nil:
		es.logger.Error(msg, args...)
	}
}

// recordDuration records an operation duration, preferring the context-aware
// collector methods when the configured collector supports them.
func (es *EventStore[E]) recordDuration(
	ctx context.Context,
	metric string,
	duration time.Duration,
	operation string,
	status string,
) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelStatus:    status,
		labelAggregate: es.aggregateName,
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metric, duration, labels)
}

func (es *EventStore[E]) recordCounter(ctx context.Context, metric string, operation string, sink string) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelSink:      sink,
		labelAggregate: es.aggregateName,
	}

	if contextual, ok := es.metricsCollector.(eventstore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metric, labels)
}

func (es *EventStore[E]) startSpan(ctx context.Context, operation string, aggregateID string) (context.Context, eventstore.SpanContext) {
	if es.tracingCollector == nil {
		return ctx, nil
	}

	return es.tracingCollector.StartSpan(ctx, "eventstore."+operation, map[string]string{
		labelAggregate:     es.aggregateName,
		logAttrAggregateID: aggregateID,
	})
}

func (es *EventStore[E]) finishSpan(span eventstore.SpanContext, status string) {
	if es.tracingCollector == nil || span == nil {
		return
	}

	es.tracingCollector.FinishSpan(span, status, nil)
}
