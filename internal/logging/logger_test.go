package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewBuildsBothModes(t *testing.T) {
	t.Parallel()

	for _, dev := range []bool{true, false} {
		logger, err := New(dev)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("logger ready")
		_ = logger.Sync()
	}
}

func TestForInvocationAddsFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ForInvocation(zap.New(core), "detail", "0190-abc").Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "detail", fields["stage"])
	assert.Equal(t, "0190-abc", fields["invocation_id"])
}

func TestForInvocationNilLogger(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { ForInvocation(nil, "directory", "id").Info("dropped") })
}
