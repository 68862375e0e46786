package logger

import (
	"testing"

	"github.com/cozy-creator/theme-manager/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerByEnvironment(t *testing.T) {
	tests := map[string]struct {
		debug   bool
		enabled bool
	}{
		"dev":  {debug: true, enabled: true},
		"prod": {debug: false, enabled: true},
		"test": {debug: false, enabled: false},
	}

	for env, want := range tests {
		t.Run(env, func(t *testing.T) {
			l, err := NewLogger(&config.Config{Environment: env})
			require.NoError(t, err)
			assert.Equal(t, want.debug, l.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, want.enabled, l.Core().Enabled(zapcore.ErrorLevel))
		})
	}
}
