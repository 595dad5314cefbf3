package zapadapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eventforge/aggregate-eventstore-go/eventstore/zapadapter"
)

func Test_Logger_ForwardsMessagesAndKeyValuePairs(t *testing.T) {
	// arrange
	observedCore, observed := observer.New(zapcore.DebugLevel)
	logger := zapadapter.NewLogger(zap.New(observedCore))

	// act
	logger.Info("events appended", "aggregate_id", "abc", "event_count", 2)

	// assert
	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "events appended", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["aggregate_id"])
	assert.EqualValues(t, 2, fields["event_count"])
}

func Test_Logger_MapsAllFourLevels(t *testing.T) {
	observedCore, observed := observer.New(zapcore.DebugLevel)
	logger := zapadapter.NewLogger(zap.New(observedCore))

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	entries := observed.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}
