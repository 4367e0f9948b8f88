package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
	"github.com/drujensen/aibrowser/internal/impl/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubTool struct {
	name string
	desc string
}

func (s stubTool) Name() string                { return s.name }
func (s stubTool) Description() string         { return s.desc }
func (s stubTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (s stubTool) Invoke(ctx context.Context, args map[string]any) (*entities.ToolResult, error) {
	return &entities.ToolResult{Content: s.desc}, nil
}

type stubProvider struct {
	tools    []interfaces.Tool
	closeErr error
	closed   bool
}

func (p *stubProvider) Tools() []interfaces.Tool { return p.tools }
func (p *stubProvider) Lookup(name string) (interfaces.Tool, bool) {
	for _, t := range p.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
func (p *stubProvider) Close() error {
	p.closed = true
	return p.closeErr
}

func TestRegistry_MergesSources(t *testing.T) {
	first := &stubProvider{tools: []interfaces.Tool{stubTool{"browser_navigate", "first"}, stubTool{"browser_click", "first"}}}
	second := &stubProvider{tools: []interfaces.Tool{stubTool{"browser_navigate", "second"}, stubTool{"browser_take_screenshot", "second"}}}

	registry := NewRegistry(zap.NewNop(), first, second)

	assert.Len(t, registry.Tools(), 3)
	navigate, ok := registry.Lookup("browser_navigate")
	require.True(t, ok)
	assert.Equal(t, "first", navigate.Description())

	_, ok = registry.Lookup("Browser_Navigate")
	assert.False(t, ok)
}

func TestRegistry_Close(t *testing.T) {
	first := &stubProvider{closeErr: errors.New("boom")}
	second := &stubProvider{}

	registry := NewRegistry(zap.NewNop(), first, second)
	err := registry.Close()

	assert.EqualError(t, err, "boom")
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestNewRegistryFromConfig_BrowserOnly(t *testing.T) {
	cfg := &config.Config{Browser: config.BrowserConfig{Enabled: true, Headless: true}}

	registry, err := NewRegistryFromConfig(context.Background(), cfg, "test", zap.NewNop())

	require.NoError(t, err)
	defer registry.Close()
	_, ok := registry.Lookup("browser_take_screenshot")
	assert.True(t, ok)
}
