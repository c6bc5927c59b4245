package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			logger, err := NewLogger(level, false)
			require.NoError(t, err)

			var want zapcore.Level
			require.NoError(t, want.UnmarshalText([]byte(level)))
			assert.True(t, logger.Core().Enabled(want))
			assert.NotNil(t, logger.ForRepository("/tmp/repo"))
		})
	}

	dev, err := NewLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("chatty", false)
	assert.Error(t, err)
}
