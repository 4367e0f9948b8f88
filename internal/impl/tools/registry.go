package tools

import (
	"context"
	"errors"

	"github.com/drujensen/aibrowser/internal/domain/interfaces"
	"github.com/drujensen/aibrowser/internal/impl/config"

	"go.uber.org/zap"
)

// Registry merges tool sources into one tool set. Lookup is by exact name and
// the first source to register a name keeps it.
type Registry struct {
	sources []interfaces.ToolProvider
	tools   []interfaces.Tool
	index   map[string]interfaces.Tool
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger, sources ...interfaces.ToolProvider) *Registry {
	r := &Registry{
		index:  make(map[string]interfaces.Tool),
		logger: logger,
	}
	for _, source := range sources {
		r.Add(source)
	}
	return r
}

// NewRegistryFromConfig connects the configured tool servers and, when
// enabled, the built-in browser and the web_fetch tool.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config, version string, logger *zap.Logger) (*Registry, error) {
	var sources []interfaces.ToolProvider

	if len(cfg.MCPServers) > 0 {
		mcpRegistry := NewMCPRegistry(version, logger)
		if err := mcpRegistry.ConnectServers(ctx, cfg); err != nil {
			return nil, err
		}
		sources = append(sources, mcpRegistry)
	}

	if cfg.Browser.Enabled {
		sources = append(sources, NewBrowserTools(cfg.Browser.Headless, logger))
	}

	if cfg.Fetch.Enabled {
		sources = append(sources, NewFetchTools(cfg.Fetch, logger))
	}

	registry := NewRegistry(logger, sources...)
	logger.Info("Tool registry ready", zap.Int("tools", len(registry.tools)))
	return registry, nil
}

func (r *Registry) Add(source interfaces.ToolProvider) {
	r.sources = append(r.sources, source)
	for _, tool := range source.Tools() {
		if _, exists := r.index[tool.Name()]; exists {
			r.logger.Warn("Duplicate tool name; keeping the first source", zap.String("tool_name", tool.Name()))
			continue
		}
		r.tools = append(r.tools, tool)
		r.index[tool.Name()] = tool
	}
}

func (r *Registry) Tools() []interfaces.Tool {
	out := make([]interfaces.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

func (r *Registry) Lookup(name string) (interfaces.Tool, bool) {
	tool, ok := r.index[name]
	return tool, ok
}

// Close closes every source and returns the joined errors.
func (r *Registry) Close() error {
	var errs []error
	for _, source := range r.sources {
		if err := source.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ interfaces.ToolProvider = (*Registry)(nil)
