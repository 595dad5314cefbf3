package oteladapters_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventforge/aggregate-eventstore-go/eventstore/oteladapters"
)

// captureHandler records slog records for assertions.
type captureHandler struct {
	records *[]slog.Record
}

func (h captureHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h captureHandler) Handle(_ context.Context, record slog.Record) error {
	*h.records = append(*h.records, record)
	return nil
}

func (h captureHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h captureHandler) WithGroup(_ string) slog.Handler {
	return h
}

func Test_SlogBridgeLogger_ForwardsMessagesAndAttributes(t *testing.T) {
	// arrange
	var records []slog.Record
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(captureHandler{records: &records})
	ctx := context.Background()

	// act
	logger.InfoContext(ctx, "events appended", "aggregate_id", "abc", "event_count", 2)
	logger.ErrorContext(ctx, "append failed", "error", "boom")

	// assert
	require.Len(t, records, 2)
	assert.Equal(t, "events appended", records[0].Message)
	assert.Equal(t, slog.LevelInfo, records[0].Level)
	assert.Equal(t, 2, records[0].NumAttrs())
	assert.Equal(t, "append failed", records[1].Message)
	assert.Equal(t, slog.LevelError, records[1].Level)
}

func Test_SlogBridgeLogger_EmitsAllFourLevels(t *testing.T) {
	var records []slog.Record
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(captureHandler{records: &records})
	ctx := context.Background()

	logger.DebugContext(ctx, "debug")
	logger.InfoContext(ctx, "info")
	logger.WarnContext(ctx, "warn")
	logger.ErrorContext(ctx, "error")

	require.Len(t, records, 4)
	assert.Equal(t, slog.LevelDebug, records[0].Level)
	assert.Equal(t, slog.LevelWarn, records[2].Level)
}
