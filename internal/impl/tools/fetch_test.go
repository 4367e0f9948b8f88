package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drujensen/aibrowser/internal/impl/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchTool_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "en", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Example Domain</body></html>"))
	}))
	defer srv.Close()

	tool := NewFetchTool(config.FetchConfig{UserAgent: "test-agent"}, zap.NewNop())
	result, err := tool.Invoke(context.Background(), map[string]any{
		"url":     srv.URL,
		"headers": []any{"Accept-Language: en", "malformed"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var got fetchResult
	require.NoError(t, json.Unmarshal([]byte(result.Content), &got))
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "text/html; charset=utf-8", got.ContentType)
	assert.Contains(t, got.Body, "Example Domain")
	assert.False(t, got.Truncated)
}

func TestFetchTool_TruncatesAndFlagsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	tool := NewFetchTool(config.FetchConfig{MaxBytes: 10}, zap.NewNop())
	result, err := tool.Invoke(context.Background(), map[string]any{"url": srv.URL, "operation": "get"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	var got fetchResult
	require.NoError(t, json.Unmarshal([]byte(result.Content), &got))
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Len(t, got.Body, 10)
	assert.True(t, got.Truncated)
}

func TestFetchTool_RejectsBadArguments(t *testing.T) {
	tool := NewFetchTool(config.FetchConfig{}, zap.NewNop())

	_, err := tool.Invoke(context.Background(), map[string]any{})
	assert.EqualError(t, err, "url is required")

	_, err = tool.Invoke(context.Background(), map[string]any{"url": "file:///etc/passwd"})
	assert.EqualError(t, err, "url must start with http:// or https://")

	_, err = tool.Invoke(context.Background(), map[string]any{"url": "https://example.com", "operation": "DELETE"})
	assert.EqualError(t, err, "unsupported operation: DELETE")
}

func TestNewRegistryFromConfig_FetchOnly(t *testing.T) {
	cfg := &config.Config{Fetch: config.FetchConfig{Enabled: true}}

	registry, err := NewRegistryFromConfig(context.Background(), cfg, "test", zap.NewNop())
	require.NoError(t, err)
	defer registry.Close()

	tool, ok := registry.Lookup("web_fetch")
	require.True(t, ok)
	assert.Equal(t, []string{"url"}, tool.InputSchema()["required"])
}
