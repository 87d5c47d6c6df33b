package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("scan finished", zap.String("session_id", "abc"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"scan finished"`)
	assert.Contains(t, out, `"session_id":"abc"`)
	assert.Contains(t, out, `"logger":"seca-guard"`)
}

func TestNewLogger_FileCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.log")
	var console bytes.Buffer
	cfg := DefaultLogConfig()
	cfg.Level = "debug"
	cfg.File = path

	logger, err := NewLogger(cfg, zapcore.AddSync(&console))
	require.NoError(t, err)
	logger.Debug("written to both")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to both"`)
	assert.Contains(t, console.String(), "written to both")
}

func TestNewLogger_RejectsBadConfig(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "loud"}, nil)
	assert.Error(t, err)

	_, err = NewLogger(LogConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}
