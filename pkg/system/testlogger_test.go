package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Desugar().Core().Enabled(zap.DebugLevel))
	logger.Infow("test message with fields", "key", "value")
}

func TestNewObservedLogger(t *testing.T) {
	logger, logs := NewObservedLogger(zap.WarnLevel)
	logger.Infow("dropped")
	logger.Warnw("kept", "space", "dev")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "dev", entries[0].ContextMap()["space"])
}
