package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/drujensen/aibrowser/internal/domain/entities"
	"github.com/drujensen/aibrowser/internal/domain/errs"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultConfigFile = "mcp_config.json"

	DefaultGoogleModel = "gemini-2.0-flash"
	DefaultOpenAIModel = "gpt-4.1-mini"
	DefaultTemperature = 0.1
)

// Transport names accepted in mcpServers entries.
const (
	TransportStdio      = "stdio"
	TransportSSE        = "sse"
	TransportStreamable = "streamable_http"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	ModelConfig ModelConfig       `mapstructure:"modelConfig"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Screenshots ScreenshotsConfig `mapstructure:"screenshots"`
	Checkpoint  CheckpointConfig  `mapstructure:"checkpoint"`
	History     HistoryConfig     `mapstructure:"history"`
	Model       ModelCallConfig   `mapstructure:"model"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`

	// MCPServers is decoded separately so server names and env keys keep their case.
	MCPServers map[string]MCPServerConfig `mapstructure:"-"`

	OpenAIAPIKey  string `mapstructure:"-"`
	OpenAIBaseURL string `mapstructure:"-"`
	GoogleAPIKey  string `mapstructure:"-"`

	Path   string      `mapstructure:"-"`
	logger *zap.Logger `mapstructure:"-"`
}

type ModelConfig struct {
	Provider string                            `mapstructure:"provider"`
	Models   map[string]entities.ModelSettings `mapstructure:"models"`
}

type MCPServerConfig struct {
	Command   string            `json:"command"`
	Args      []string          `json:"args"`
	Env       map[string]string `json:"env"`
	URL       string            `json:"url"`
	Transport string            `json:"transport"`
}

type AgentConfig struct {
	MaxIterations   int           `mapstructure:"max_iterations"`
	MaxDuration     time.Duration `mapstructure:"max_duration"`
	ToolConcurrency int           `mapstructure:"tool_concurrency"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
	SystemPrompt    string        `mapstructure:"system_prompt"`
}

type ScreenshotsConfig struct {
	Dir string `mapstructure:"dir"`
}

type CheckpointConfig struct {
	Backend  string `mapstructure:"backend"`
	Path     string `mapstructure:"path"`
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type HistoryConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

type ModelCallConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryMaxElapsed   time.Duration `mapstructure:"retry_max_elapsed"`
}

type BrowserConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Headless bool `mapstructure:"headless"`
}

// FetchConfig enables the web_fetch tool, a plain HTTP reader for pages that
// do not need a browser.
type FetchConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxBytes  int           `mapstructure:"max_bytes"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("modelConfig.provider", string(entities.ProviderGoogle))
	v.SetDefault("modelConfig.models.google.model", DefaultGoogleModel)
	v.SetDefault("modelConfig.models.google.temperature", DefaultTemperature)
	v.SetDefault("modelConfig.models.openai.model", DefaultOpenAIModel)
	v.SetDefault("modelConfig.models.openai.temperature", DefaultTemperature)

	v.SetDefault("agent.max_iterations", 25)
	v.SetDefault("agent.max_duration", "0s")
	v.SetDefault("agent.tool_concurrency", 1)
	v.SetDefault("agent.tool_timeout", "0s")
	v.SetDefault("agent.system_prompt", "")

	v.SetDefault("screenshots.dir", "screenshots")

	v.SetDefault("checkpoint.backend", BackendMemory)
	v.SetDefault("checkpoint.path", ".aibrowser")
	v.SetDefault("checkpoint.uri", "")
	v.SetDefault("checkpoint.database", "aibrowser")

	v.SetDefault("history.max_tokens", 0)

	v.SetDefault("model.requests_per_minute", 0)
	v.SetDefault("model.max_retries", 3)
	v.SetDefault("model.retry_max_elapsed", "2m")

	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.headless", true)

	v.SetDefault("fetch.enabled", false)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.max_bytes", 200000)
	v.SetDefault("fetch.timeout", "30s")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("server.addr", ":8080")
}

// Load reads .env and the JSON config file at path. A missing config file
// leaves every setting at its default.
func Load(path string, logger *zap.Logger) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No .env file found; falling back to system environment variables")
		} else {
			logger.Error("Config file load error", zap.Error(err))
			return nil, errs.ConfigErrorf("failed to load .env file: %v", err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("AIBROWSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			logger.Warn("Config file not found; using defaults", zap.String("path", path))
			fileFound = false
		} else {
			return nil, errs.ConfigErrorf("failed to read config file %s: %v", path, err)
		}
	}

	cfg := &Config{Path: path, logger: logger}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.ConfigErrorf("failed to unmarshal config: %v", err)
	}

	cfg.MCPServers = map[string]MCPServerConfig{}
	if fileFound {
		servers, err := readServers(path)
		if err != nil {
			return nil, err
		}
		for name, server := range servers {
			resolved, err := cfg.ResolveConfiguration(server.Env)
			if err != nil {
				return nil, errs.ConfigErrorf("mcp server %s: %v", name, err)
			}
			server.Env = resolved
			cfg.MCPServers[name] = server
		}
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.GoogleAPIKey = os.Getenv("GOOGLE_APIKEY")
	if cfg.GoogleAPIKey == "" {
		cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	}

	logger.Debug("Loaded configuration",
		zap.String("path", path),
		zap.String("provider", cfg.ModelConfig.Provider),
		zap.Int("mcp_servers", len(cfg.MCPServers)),
		zap.String("openai_api_key", maskKey(cfg.OpenAIAPIKey)),
		zap.String("google_api_key", maskKey(cfg.GoogleAPIKey)))

	return cfg, nil
}

func readServers(path string) (map[string]MCPServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.ConfigErrorf("failed to read config file %s: %v", path, err)
	}

	var doc struct {
		MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.ConfigErrorf("malformed mcpServers in %s: %v", path, err)
	}
	if doc.MCPServers == nil {
		return map[string]MCPServerConfig{}, nil
	}
	return doc.MCPServers, nil
}

// Validate reports the first setting that would stop a session from running.
func (c *Config) Validate() error {
	provider, ok := entities.ParseProviderType(c.ModelConfig.Provider)
	if !ok {
		return errs.ConfigErrorf("unsupported provider: %q", c.ModelConfig.Provider)
	}
	if c.APIKey(provider) == "" {
		switch provider {
		case entities.ProviderOpenAI:
			return errs.ConfigErrorf("OPENAI_API_KEY is not set")
		case entities.ProviderGoogle:
			return errs.ConfigErrorf("GOOGLE_APIKEY is not set")
		}
	}

	if len(c.MCPServers) == 0 && !c.Browser.Enabled && !c.Fetch.Enabled {
		return errs.ConfigErrorf("no mcpServers configured and no built-in tools are enabled")
	}
	for _, name := range c.ServerNames() {
		server := c.MCPServers[name]
		if server.Command == "" && server.URL == "" {
			return errs.ConfigErrorf("mcp server %s needs a command or a url", name)
		}
		switch server.Transport {
		case "", TransportStdio, TransportSSE, TransportStreamable, "http":
		default:
			return errs.ConfigErrorf("mcp server %s has unsupported transport %q", name, server.Transport)
		}
	}

	switch c.Checkpoint.Backend {
	case BackendMemory, BackendFile, BackendMongo, BackendSQLite, BackendPostgres:
	default:
		return errs.ConfigErrorf("unsupported checkpoint backend %q", c.Checkpoint.Backend)
	}
	if (c.Checkpoint.Backend == BackendMongo || c.Checkpoint.Backend == BackendPostgres) && c.Checkpoint.URI == "" {
		return errs.ConfigErrorf("checkpoint.uri is required for the %s backend", c.Checkpoint.Backend)
	}

	if c.Agent.MaxIterations < 0 || c.Agent.ToolConcurrency < 0 || c.History.MaxTokens < 0 || c.Fetch.MaxBytes < 0 {
		return errs.ConfigErrorf("agent limits, history.max_tokens and fetch.max_bytes must not be negative")
	}
	return nil
}

// Provider returns the configured provider tag.
func (c *Config) Provider() string {
	return c.ModelConfig.Provider
}

// ModelSettings returns the model selection for provider with defaults filled in.
func (c *Config) ModelSettings(provider entities.ProviderType) entities.ModelSettings {
	settings, ok := c.ModelConfig.Models[string(provider)]
	if !ok {
		settings = entities.ModelSettings{Temperature: DefaultTemperature}
	}
	if settings.Model == "" {
		switch provider {
		case entities.ProviderOpenAI:
			settings.Model = DefaultOpenAIModel
		case entities.ProviderGoogle:
			settings.Model = DefaultGoogleModel
		}
	}
	return settings
}

func (c *Config) APIKey(provider entities.ProviderType) string {
	switch provider {
	case entities.ProviderOpenAI:
		return c.OpenAIAPIKey
	case entities.ProviderGoogle:
		return c.GoogleAPIKey
	}
	return ""
}

// ServerNames returns the configured tool server names in a stable order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) ResolveEnvironmentVariable(value string) (string, error) {
	const prefix, suffix = "#{", "}#"
	if strings.HasPrefix(value, prefix) && strings.HasSuffix(value, suffix) {
		varName := strings.TrimSuffix(strings.TrimPrefix(value, prefix), suffix)
		if varName == "" {
			return "", fmt.Errorf("empty variable name in reference: %s", value)
		}

		resolved := os.Getenv(varName)
		if resolved == "" {
			c.logger.Warn("Environment variable not found for reference",
				zap.String("reference", value),
				zap.String("var_name", varName))
			return "", fmt.Errorf("environment variable '%s' not found", varName)
		}

		c.logger.Debug("Resolved environment variable",
			zap.String("var_name", varName),
			zap.String("resolved", maskKey(resolved)))
		return resolved, nil
	}

	return value, nil
}

func (c *Config) ResolveConfiguration(config map[string]string) (map[string]string, error) {
	if config == nil {
		return nil, nil
	}
	resolvedConfig := make(map[string]string, len(config))
	for key, value := range config {
		resolvedValue, err := c.ResolveEnvironmentVariable(value)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve configuration for key '%s': %w", key, err)
		}
		resolvedConfig[key] = resolvedValue
	}
	return resolvedConfig, nil
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
