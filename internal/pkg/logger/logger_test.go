package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"Info":    zapcore.InfoLevel,
		"warning": zapcore.InfoLevel,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		if name == "warning" {
			assert.Error(t, err)
		} else {
			assert.NoError(t, err, name)
		}
		assert.Equal(t, want, got, name)
	}
}

func TestInitLoggerSetsLevel(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop() })

	require.NoError(t, InitLogger("debug"))
	assert.True(t, Log.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, InitLogger("verbose"))
	assert.False(t, Log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, Log.Core().Enabled(zapcore.InfoLevel))

	assert.True(t, Named("scheduler").Core().Enabled(zapcore.InfoLevel))
}
