package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := NewLogger(debug)
		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.Equal(t, debug, logger.Core().Enabled(zap.DebugLevel), "debug=%v", debug)
		assert.True(t, logger.Core().Enabled(zap.InfoLevel))
		_ = logger.Sync()
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil, nil))

	logger := zap.NewExample()
	assert.Same(t, logger, OrNop(logger, nil))
	assert.NotSame(t, logger, OrNop(logger, errors.New("build failed")))
}
