package interfaces

import (
	"context"

	"github.com/drujensen/aibrowser/internal/domain/entities"
)

// Tool is one invocable capability from the tool set, typically a browser
// action exposed by a remote tool server.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Invoke(ctx context.Context, arguments map[string]any) (*entities.ToolResult, error)
}

// ToolSet resolves tools by exact name.
type ToolSet interface {
	Tools() []Tool
	Lookup(name string) (Tool, bool)
}

// ToolProvider is a source of tools that holds remote resources.
type ToolProvider interface {
	ToolSet
	Close() error
}
