package system

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevels(t *testing.T) {
	logger, err := NewLogger(false)
	require.NoError(t, err)
	require.False(t, logger.Desugar().Core().Enabled(zap.DebugLevel))
	require.True(t, logger.Desugar().Core().Enabled(zap.InfoLevel))

	debug, err := NewLogger(true)
	require.NoError(t, err)
	require.True(t, debug.Desugar().Core().Enabled(zap.DebugLevel))
}

func TestRunFields(t *testing.T) {
	require.Equal(t, []interface{}{"runID", "r-1", "phase", "install"}, RunFields("r-1", "install"))
	require.Equal(t, []interface{}{"runID", "r-1"}, RunFields("r-1", ""))
}

func TestRunFieldsWithLogger(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	zap.New(core).Sugar().With(RunFields("r-2", "auth")...).Infow("done")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "r-2", fields["runID"])
	require.Equal(t, "auth", fields["phase"])
}
