package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/drujensen/aibrowser/internal/impl/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_DefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{}, zapcore.AddSync(&buf))

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "debug", Format: "json"}, zapcore.AddSync(&buf))

	logger.Debug("Tool executed", zap.String("tool_name", "browser_navigate"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "browser_navigate", entry["tool_name"])
}

func TestNew_FileCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aibrowser.log")
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "info", File: path, MaxSize: 1}, zapcore.AddSync(&buf))

	logger.Info("Session started", zap.String("thread_id", "42"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"thread_id":"42"`)
}
