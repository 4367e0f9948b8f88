package entities

type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGoogle ProviderType = "google"
)

// SupportedProviders is the closed set of model backends.
var SupportedProviders = []ProviderType{ProviderOpenAI, ProviderGoogle}

func ParseProviderType(value string) (ProviderType, bool) {
	for _, p := range SupportedProviders {
		if string(p) == value {
			return p, true
		}
	}
	return "", false
}

// ModelSettings is the per-provider model selection from modelConfig.models.
type ModelSettings struct {
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
}
