package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("development config enables info but not debug", func(t *testing.T) {
		l, err := New(DefaultConfig())
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("fills in a missing time format", func(t *testing.T) {
		cfg := &Config{Level: "debug", Format: "json", Output: "stderr"}
		l, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, defaultTimeFormat, cfg.TimeFormat)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("writes json lines to a file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crm.log")
		l, err := New(&Config{Level: "info", Format: "json", Output: path})
		require.NoError(t, err)

		l.Info("schema applied")
		require.NoError(t, l.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"schema applied"`)
	})
}

func TestNew_Fields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.log")
	l, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: path,
		Fields: map[string]string{"service": "crm-backend", "env": "test"},
	})
	require.NoError(t, err)

	l.Info("customer saved")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"env":"test","service":"crm-backend"`)
}

func TestNew_UnwritableOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "crm.log")
	_, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open log output")
}
