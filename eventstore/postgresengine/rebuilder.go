package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
	"github.com/eventforge/aggregate-eventstore-go/eventstore/postgresengine/internal/adapters"
)

// Rebuilder regenerates read models from the event log.
//
// By default it replays through the store's replayable handlers; handlers
// that report themselves as not replayable (see eventstore.Replayer) are
// skipped. Rebuilds take no per-aggregate locks: writers appending during a
// rebuild are not blocked, and their events may or may not be included in
// the replayed state. Run rebuilds against a quiesced system when that
// matters.
type Rebuilder[E any] struct {
	store                 *EventStore[E]
	transactionalHandlers []eventstore.TransactionalEventHandler[E]
	eventHandlers         []eventstore.EventHandler[E]
}

// RebuilderOption is a configuration option for NewRebuilder.
type RebuilderOption[E any] func(*Rebuilder[E])

// WithRebuildTransactionalHandlers replaces the default set of replayable
// transactional handlers taken from the store.
func WithRebuildTransactionalHandlers[E any](handlers ...eventstore.TransactionalEventHandler[E]) RebuilderOption[E] {
	return func(r *Rebuilder[E]) {
		r.transactionalHandlers = handlers
	}
}

// WithRebuildEventHandlers replaces the default set of replayable eventual
// handlers taken from the store.
func WithRebuildEventHandlers[E any](handlers ...eventstore.EventHandler[E]) RebuilderOption[E] {
	return func(r *Rebuilder[E]) {
		r.eventHandlers = handlers
	}
}

// NewRebuilder creates a Rebuilder over the given store's event log.
func NewRebuilder[E any](store *EventStore[E], options ...RebuilderOption[E]) *Rebuilder[E] {
	rebuilder := &Rebuilder[E]{
		store:                 store,
		transactionalHandlers: replayableTransactionalHandlers(store.transactionalHandlers),
		eventHandlers:         replayableEventHandlers(store.eventHandlers),
	}

	for _, option := range options {
		option(rebuilder)
	}

	return rebuilder
}

// RebuildAllAtOnce rebuilds every aggregate instance's projections in one
// transaction: all handler state is deleted and the full log is replayed
// through the transactional handlers before anything commits. Readers see
// either the old state or the fully rebuilt one, never a half-rebuilt
// mixture. The eventual handlers get the same delete-then-replay treatment
// after the commit.
func (r *Rebuilder[E]) RebuildAllAtOnce(ctx context.Context) error {
	aggregateIDs, idsErr := r.store.AggregateIDs(ctx)
	if idsErr != nil {
		return idsErr
	}

	stream, streamErr := r.store.StreamAll(ctx, eventstore.StreamOrderByAggregate)
	if streamErr != nil {
		return streamErr
	}
	defer r.store.closeRows(ctx, stream.rows)

	tx, beginErr := r.store.db.Begin(ctx)
	if beginErr != nil {
		return errors.Join(eventstore.ErrBeginningTransactionFailed, beginErr)
	}

	committed := false
	defer func() {
		if !committed {
			r.store.rollback(ctx, tx)
		}
	}()

	for _, handler := range r.transactionalHandlers {
		for _, aggregateID := range aggregateIDs {
			if deleteErr := handler.Delete(ctx, aggregateID, tx); deleteErr != nil {
				return errors.Join(eventstore.ErrTransactionalHandlerFailed, deleteErr)
			}
		}
	}

	// replayed events are kept only when an eventual phase needs them
	var replayed []eventstore.StoredEvent[E]

	for stream.Next() {
		storedEvent := stream.Event()

		for _, handler := range r.transactionalHandlers {
			if handleErr := handler.Handle(ctx, storedEvent, tx); handleErr != nil {
				return errors.Join(eventstore.ErrTransactionalHandlerFailed, handleErr)
			}
		}

		if len(r.eventHandlers) > 0 {
			replayed = append(replayed, storedEvent)
		}
	}

	if streamErr := stream.Err(); streamErr != nil {
		return streamErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return errors.Join(eventstore.ErrCommittingTransactionFailed, commitErr)
	}

	committed = true

	r.runEventualPhase(ctx, aggregateIDs, replayed)

	return nil
}

// RebuildByAggregateID rebuilds the projections one aggregate instance at a
// time, each in its own transaction. Memory use stays bounded by the largest
// single instance, and other instances' projections remain readable while
// one is being rebuilt.
func (r *Rebuilder[E]) RebuildByAggregateID(ctx context.Context) error {
	aggregateIDs, idsErr := r.store.AggregateIDs(ctx)
	if idsErr != nil {
		return idsErr
	}

	for _, aggregateID := range aggregateIDs {
		if rebuildErr := r.RebuildOneAggregate(ctx, aggregateID); rebuildErr != nil {
			return rebuildErr
		}
	}

	return nil
}

// RebuildOneAggregate rebuilds the projections of a single aggregate
// instance in one transaction.
func (r *Rebuilder[E]) RebuildOneAggregate(ctx context.Context, aggregateID uuid.UUID) error {
	storedEvents, loadErr := r.store.Load(ctx, aggregateID)
	if loadErr != nil {
		return loadErr
	}

	tx, beginErr := r.store.db.Begin(ctx)
	if beginErr != nil {
		return errors.Join(eventstore.ErrBeginningTransactionFailed, beginErr)
	}

	committed := false
	defer func() {
		if !committed {
			r.store.rollback(ctx, tx)
		}
	}()

	for _, handler := range r.transactionalHandlers {
		if deleteErr := handler.Delete(ctx, aggregateID, tx); deleteErr != nil {
			return errors.Join(eventstore.ErrTransactionalHandlerFailed, deleteErr)
		}
	}

	for _, storedEvent := range storedEvents {
		for _, handler := range r.transactionalHandlers {
			if handleErr := handler.Handle(ctx, storedEvent, tx); handleErr != nil {
				return errors.Join(eventstore.ErrTransactionalHandlerFailed, handleErr)
			}
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return errors.Join(eventstore.ErrCommittingTransactionFailed, commitErr)
	}

	committed = true

	r.runEventualPhase(ctx, []uuid.UUID{aggregateID}, storedEvents)

	return nil
}

// runEventualPhase replays the given events through the replayable eventual
// handlers after their state was deleted. Failures are logged and swallowed,
// matching the handlers' live behavior.
func (r *Rebuilder[E]) runEventualPhase(
	ctx context.Context,
	aggregateIDs []uuid.UUID,
	storedEvents []eventstore.StoredEvent[E],
) {
	for _, handler := range r.eventHandlers {
		for _, aggregateID := range aggregateIDs {
			if deleteErr := handler.Delete(ctx, aggregateID); deleteErr != nil {
				r.store.logWarn(ctx, logMsgHandlerDeleteFailed,
					logAttrHandler, handler.Name(),
					logAttrAggregateID, aggregateID.String(),
					logAttrError, deleteErr.Error())
			}
		}
	}

	for _, storedEvent := range storedEvents {
		for _, handler := range r.eventHandlers {
			if handleErr := handler.Handle(ctx, storedEvent); handleErr != nil {
				r.store.logWarn(ctx, logMsgHandlerFailed,
					logAttrHandler, handler.Name(),
					logAttrEventID, storedEvent.ID.String(),
					logAttrError, handleErr.Error())
			}
		}
	}
}

func replayableTransactionalHandlers[E any](handlers []eventstore.TransactionalEventHandler[E]) []eventstore.TransactionalEventHandler[E] {
	kept := make([]eventstore.TransactionalEventHandler[E], 0, len(handlers))

	for _, handler := range handlers {
		if eventstore.IsReplayable(handler) {
			kept = append(kept, handler)
		}
	}

	return kept
}

func replayableEventHandlers[E any](handlers []eventstore.EventHandler[E]) []eventstore.EventHandler[E] {
	kept := make([]eventstore.EventHandler[E], 0, len(handlers))

	for _, handler := range handlers {
		if eventstore.IsReplayable(handler) {
			kept = append(kept, handler)
		}
	}

	return kept
}

// ReplaySource is a type-erased replay cursor over one store's event log,
// ordered by storage time. It lets RebuildMultiProjection merge the logs of
// stores with different event types into one chronological replay.
type ReplaySource interface {
	// Open starts the occurred_on-ordered stream and positions the cursor
	// before the first event.
	Open(ctx context.Context) error

	// Next advances the cursor, returning false at the end of the stream.
	Next() bool

	// OccurredOn returns the storage time of the current event.
	OccurredOn() time.Time

	// Reset deletes the replayable transactional handlers' state for every
	// aggregate instance of this source, inside the given transaction.
	Reset(ctx context.Context, tx eventstore.Tx) error

	// ApplyTransactional replays the current event through the replayable
	// transactional handlers, inside the given transaction.
	ApplyTransactional(ctx context.Context, tx eventstore.Tx) error

	// FlushEventual replays everything this source has streamed through the
	// replayable eventual handlers. Call it once, after the transaction
	// committed.
	FlushEventual(ctx context.Context)

	// Err returns the first iteration error, if any.
	Err() error

	// Close releases the stream.
	Close() error
}

// NewReplaySource wraps a store as a ReplaySource using the store's
// replayable handlers.
func NewReplaySource[E any](store *EventStore[E]) ReplaySource {
	return &replaySource[E]{
		store:                 store,
		transactionalHandlers: replayableTransactionalHandlers(store.transactionalHandlers),
		eventHandlers:         replayableEventHandlers(store.eventHandlers),
	}
}

type replaySource[E any] struct {
	store                 *EventStore[E]
	transactionalHandlers []eventstore.TransactionalEventHandler[E]
	eventHandlers         []eventstore.EventHandler[E]

	aggregateIDs []uuid.UUID
	stream       *EventStream[E]
	replayed     []eventstore.StoredEvent[E]
}

func (s *replaySource[E]) Open(ctx context.Context) error {
	aggregateIDs, idsErr := s.store.AggregateIDs(ctx)
	if idsErr != nil {
		return idsErr
	}

	stream, streamErr := s.store.StreamAll(ctx, eventstore.StreamOrderByOccurrence)
	if streamErr != nil {
		return streamErr
	}

	s.aggregateIDs = aggregateIDs
	s.stream = stream

	return nil
}

func (s *replaySource[E]) Next() bool {
	return s.stream.Next()
}

func (s *replaySource[E]) OccurredOn() time.Time {
	return s.stream.Event().OccurredOn
}

func (s *replaySource[E]) Reset(ctx context.Context, tx eventstore.Tx) error {
	for _, handler := range s.transactionalHandlers {
		for _, aggregateID := range s.aggregateIDs {
			if deleteErr := handler.Delete(ctx, aggregateID, tx); deleteErr != nil {
				return errors.Join(eventstore.ErrTransactionalHandlerFailed, deleteErr)
			}
		}
	}

	return nil
}

func (s *replaySource[E]) ApplyTransactional(ctx context.Context, tx eventstore.Tx) error {
	storedEvent := s.stream.Event()

	for _, handler := range s.transactionalHandlers {
		if handleErr := handler.Handle(ctx, storedEvent, tx); handleErr != nil {
			return errors.Join(eventstore.ErrTransactionalHandlerFailed, handleErr)
		}
	}

	if len(s.eventHandlers) > 0 {
		s.replayed = append(s.replayed, storedEvent)
	}

	return nil
}

func (s *replaySource[E]) FlushEventual(ctx context.Context) {
	for _, handler := range s.eventHandlers {
		for _, aggregateID := range s.aggregateIDs {
			if deleteErr := handler.Delete(ctx, aggregateID); deleteErr != nil {
				s.store.logWarn(ctx, logMsgHandlerDeleteFailed,
					logAttrHandler, handler.Name(),
					logAttrAggregateID, aggregateID.String(),
					logAttrError, deleteErr.Error())
			}
		}
	}

	for _, storedEvent := range s.replayed {
		for _, handler := range s.eventHandlers {
			if handleErr := handler.Handle(ctx, storedEvent); handleErr != nil {
				s.store.logWarn(ctx, logMsgHandlerFailed,
					logAttrHandler, handler.Name(),
					logAttrEventID, storedEvent.ID.String(),
					logAttrError, handleErr.Error())
			}
		}
	}
}

func (s *replaySource[E]) Err() error {
	return s.stream.Err()
}

func (s *replaySource[E]) Close() error {
	if s.stream == nil {
		return nil
	}

	return s.stream.Close()
}

// RebuildMultiProjection rebuilds projections that read from several stores'
// logs by merging the streams chronologically and replaying them in one
// transaction. All sources' transactional handler state is reset first, so a
// cross-store projection never observes a partially rebuilt ordering.
func RebuildMultiProjection(ctx context.Context, db *pgxpool.Pool, sources ...ReplaySource) error {
	if db == nil {
		return eventstore.ErrNilDatabaseConnection
	}

	return rebuildMultiProjection(ctx, adapters.NewPGXAdapter(db), sources...)
}

func rebuildMultiProjection(ctx context.Context, db adapters.DBAdapter, sources ...ReplaySource) error {
	for _, source := range sources {
		if openErr := source.Open(ctx); openErr != nil {
			return openErr
		}
		defer func(source ReplaySource) {
			_ = source.Close()
		}(source)
	}

	tx, beginErr := db.Begin(ctx)
	if beginErr != nil {
		return errors.Join(eventstore.ErrBeginningTransactionFailed, beginErr)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, source := range sources {
		if resetErr := source.Reset(ctx, tx); resetErr != nil {
			return resetErr
		}
	}

	// prime every cursor, then repeatedly apply the chronologically earliest
	// current event
	pending := make([]bool, len(sources))
	for i, source := range sources {
		pending[i] = source.Next()
	}

	for {
		earliest := -1

		for i, source := range sources {
			if !pending[i] {
				continue
			}

			if earliest < 0 || source.OccurredOn().Before(sources[earliest].OccurredOn()) {
				earliest = i
			}
		}

		if earliest < 0 {
			break
		}

		if applyErr := sources[earliest].ApplyTransactional(ctx, tx); applyErr != nil {
			return applyErr
		}

		pending[earliest] = sources[earliest].Next()
	}

	for _, source := range sources {
		if iterErr := source.Err(); iterErr != nil {
			return iterErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return errors.Join(eventstore.ErrCommittingTransactionFailed, commitErr)
	}

	committed = true

	for _, source := range sources {
		source.FlushEventual(ctx)
	}

	return nil
}
