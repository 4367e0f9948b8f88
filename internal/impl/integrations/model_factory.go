package integrations

import (
	"context"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"
	"github.com/drujensen/aibrowser/internal/domain/interfaces"
	"github.com/drujensen/aibrowser/internal/impl/config"

	"go.uber.org/zap"
)

// ModelFactory creates model integrations for the closed provider set from
// the loaded configuration.
type ModelFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewModelFactory(cfg *config.Config, logger *zap.Logger) *ModelFactory {
	return &ModelFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateModelIntegration binds tools to the provider's configured model.
// Unknown providers and missing credentials are configuration errors.
func (f *ModelFactory) CreateModelIntegration(ctx context.Context, provider entities.ProviderType, tools interfaces.ToolSet) (interfaces.ModelIntegration, error) {
	settings := f.cfg.ModelSettings(provider)
	apiKey := f.cfg.APIKey(provider)
	policy := CallPolicy{
		RequestsPerMinute: f.cfg.Model.RequestsPerMinute,
		MaxRetries:        f.cfg.Model.MaxRetries,
		MaxElapsed:        f.cfg.Model.RetryMaxElapsed,
	}

	switch provider {
	case entities.ProviderOpenAI:
		if apiKey == "" {
			return nil, errs.ConfigErrorf("OPENAI_API_KEY is not set")
		}
		model, err := NewOpenAIIntegration(f.cfg.OpenAIBaseURL, apiKey, settings, tools, policy, f.logger)
		if err != nil {
			return nil, errs.ConfigErrorf("openai: %v", err)
		}
		return model, nil
	case entities.ProviderGoogle:
		if apiKey == "" {
			return nil, errs.ConfigErrorf("GOOGLE_APIKEY is not set")
		}
		model, err := NewGoogleIntegration(ctx, "", apiKey, settings, tools, policy, f.logger)
		if err != nil {
			return nil, errs.ConfigErrorf("google: %v", err)
		}
		return model, nil
	default:
		return nil, errs.ConfigErrorf("unsupported provider: %q", string(provider))
	}
}

var _ interfaces.ModelFactory = (*ModelFactory)(nil)
