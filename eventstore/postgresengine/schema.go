package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
)

const (
	ddlCreateEventsTable = `
		CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			aggregate_id uuid NOT NULL,
			payload jsonb NOT NULL,
			occurred_on timestamp with time zone NOT NULL,
			sequence_number bigint NOT NULL,
			version integer NOT NULL
		)`

	ddlCreateSequenceIndex = `
		CREATE UNIQUE INDEX IF NOT EXISTS %s_aggregate_sequence_idx
		ON %s (aggregate_id, sequence_number)`

	ddlCreateOccurredOnIndex = `
		CREATE INDEX IF NOT EXISTS %s_occurred_on_idx
		ON %s (occurred_on)`
)

// CreateSchema creates the events table and its indexes if they do not exist
// yet. The unique index on (aggregate_id, sequence_number) is what turns a
// concurrent gapless-sequence write into a detectable conflict.
func (es *EventStore[E]) CreateSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(ddlCreateEventsTable, es.tableName),
		fmt.Sprintf(ddlCreateSequenceIndex, es.tableName, es.tableName),
		fmt.Sprintf(ddlCreateOccurredOnIndex, es.tableName, es.tableName),
	}

	for _, statement := range statements {
		if _, execErr := es.db.Exec(ctx, statement); execErr != nil {
			es.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, statement)

			return errors.Join(eventstore.ErrCreatingSchemaFailed, execErr)
		}
	}

	return nil
}
