package eventstore

import (
	"errors"
)

// SequenceNumber is the per-aggregate position of a stored event.
// For every aggregate instance the sequence numbers form a contiguous
// run starting at 1 with no gaps.
type SequenceNumber = int64

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrNilCodec = errors.New("codec must not be nil")
var ErrEmptyAggregateName = errors.New("empty aggregate name supplied")
var ErrEmptyEventsTableName = errors.New("empty events table name supplied")

var ErrAcquiringLockFailed = errors.New("acquiring aggregate lock failed")
var ErrReleasingLockFailed = errors.New("releasing aggregate lock failed")

var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrQueryingEventsFailed = errors.New("querying events failed")
var ErrScanningDBRowFailed = errors.New("scanning database row failed")

var ErrEncodingEventFailed = errors.New("encoding event payload failed")
var ErrDecodingEventFailed = errors.New("decoding event payload failed")
var ErrMissingUpcaster = errors.New("no upcaster registered for payload version")

var ErrGeneratingIDFailed = errors.New("generating identifier failed")

var ErrCreatingSchemaFailed = errors.New("creating event store schema failed")

var ErrBeginningTransactionFailed = errors.New("beginning transaction failed")
var ErrCommittingTransactionFailed = errors.New("committing transaction failed")
var ErrAppendingEventsFailed = errors.New("appending events failed")
var ErrDeletingEventsFailed = errors.New("deleting events failed")
var ErrTransactionalHandlerFailed = errors.New("transactional event handler failed")

// ErrSequenceConflict signals a stale prior sequence number: something else
// wrote to the aggregate between load and append. With the per-aggregate lock
// held this indicates a programming error, not a race.
var ErrSequenceConflict = errors.New("sequence number conflict, events were not appended")
