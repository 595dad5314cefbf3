package postgresengine

import (
	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

// Option is a configuration option for the EventStore constructors.
type Option[E any] func(*EventStore[E]) error

// WithTableName overrides the default events table name of
// "<aggregateName>_events".
func WithTableName[E any](tableName string) Option[E] {
	return func(es *EventStore[E]) error {
		if tableName == "" {
			return eventstore.ErrEmptyEventsTableName
		}

		es.tableName = tableName

		return nil
	}
}

// WithIDGenerator overrides the default random (v4) event id generator.
func WithIDGenerator[E any](ids eventstore.IDGenerator) Option[E] {
	return func(es *EventStore[E]) error {
		es.ids = ids

		return nil
	}
}

// WithTransactionalEventHandlers registers handlers that run inside the
// append transaction, in the given order.
func WithTransactionalEventHandlers[E any](handlers ...eventstore.TransactionalEventHandler[E]) Option[E] {
	return func(es *EventStore[E]) error {
		es.transactionalHandlers = append(es.transactionalHandlers, handlers...)

		return nil
	}
}

// WithEventHandlers registers handlers that run after a successful commit,
// in the given order.
func WithEventHandlers[E any](handlers ...eventstore.EventHandler[E]) Option[E] {
	return func(es *EventStore[E]) error {
		es.eventHandlers = append(es.eventHandlers, handlers...)

		return nil
	}
}

// WithEventBuses registers bus sinks that committed events are published to.
func WithEventBuses[E any](buses ...eventstore.EventBus[E]) Option[E] {
	return func(es *EventStore[E]) error {
		es.eventBuses = append(es.eventBuses, buses...)

		return nil
	}
}

// WithLogger supplies a structured logger for operational logging.
//
// If the logger also implements eventstore.ContextualLogger it is used for
// context-aware logging as well.
func WithLogger[E any](logger eventstore.Logger) Option[E] {
	return func(es *EventStore[E]) error {
		es.logger = logger

		if contextual, ok := logger.(eventstore.ContextualLogger); ok {
			es.contextualLogger = contextual
		}

		return nil
	}
}

// WithContextualLogger supplies a context-aware structured logger.
func WithContextualLogger[E any](logger eventstore.ContextualLogger) Option[E] {
	return func(es *EventStore[E]) error {
		es.contextualLogger = logger

		return nil
	}
}

// WithMetrics supplies a metrics collector.
//
// If the collector also implements eventstore.ContextualMetricsCollector the
// context-aware methods are preferred.
func WithMetrics[E any](collector eventstore.MetricsCollector) Option[E] {
	return func(es *EventStore[E]) error {
		es.metricsCollector = collector

		return nil
	}
}

// WithTracing supplies a tracing collector.
func WithTracing[E any](collector eventstore.TracingCollector) Option[E] {
	return func(es *EventStore[E]) error {
		es.tracingCollector = collector

		return nil
	}
}
