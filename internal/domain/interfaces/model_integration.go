package interfaces

import (
	"context"

	"github.com/drujensen/aibrowser/internal/domain/entities"
)

// ModelIntegration is a model backend already bound to a tool set. Invoke
// returns exactly one AI message, which may request tool calls.
type ModelIntegration interface {
	Invoke(ctx context.Context, history []entities.Message) (*entities.Message, error)
	ModelName() string
	ProviderType() entities.ProviderType
}

// ModelFactory builds a bound model integration for a provider tag.
type ModelFactory interface {
	CreateModelIntegration(ctx context.Context, provider entities.ProviderType, tools ToolSet) (ModelIntegration, error)
}
