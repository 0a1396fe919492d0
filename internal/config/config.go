package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultAnthropicModel   = "claude-sonnet-4-20250514"
	defaultAnthropicVersion = "2023-06-01"
	defaultRetryMaxRetries  = 3
	defaultRetryBaseDelay   = "300ms"
	defaultRetryMaxDelay    = "5s"

	defaultCommitInterval = "1s"
	defaultMaxTokens      = 1024
	defaultMaxToolRounds  = 8
	defaultSearchResults  = 5

	defaultConfigRelativePath = ".config/ripple/config.toml"

	envAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	envAnthropicModel   = "RIPPLE_ANTHROPIC_MODEL"
	envAnthropicBaseURL = "RIPPLE_ANTHROPIC_BASE_URL"
	envSearchAPIKey     = "BRAVE_API_KEY"
	envSearchBaseURL    = "RIPPLE_SEARCH_BASE_URL"
	envCommitInterval   = "RIPPLE_COMMIT_INTERVAL"
	envMaxToolRounds    = "RIPPLE_MAX_TOOL_ROUNDS"
)

// ErrInvalidConfig indicates malformed configuration input.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the application configuration root.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Search   SearchConfig   `toml:"search"`
	Agent    AgentConfig    `toml:"agent"`
}

// ProviderConfig configures model providers.
type ProviderConfig struct {
	Anthropic AnthropicProviderConfig `toml:"anthropic"`
}

// AnthropicProviderConfig configures Anthropic-specific runtime values.
type AnthropicProviderConfig struct {
	APIKey  string      `toml:"api_key"`
	Model   string      `toml:"model"`
	BaseURL string      `toml:"base_url"`
	Version string      `toml:"version"`
	Retry   RetryConfig `toml:"retry"`
}

// RetryConfig stores retry policy as config-friendly values.
type RetryConfig struct {
	MaxRetries int    `toml:"max_retries"`
	BaseDelay  string `toml:"base_delay"`
	MaxDelay   string `toml:"max_delay"`
}

// SearchConfig configures the web search tool. A missing api_key degrades the
// tool to structured error results; it is not a startup failure.
type SearchConfig struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	MaxResults int    `toml:"max_results"`
}

// AgentConfig configures response-orchestration behavior.
type AgentConfig struct {
	SystemPrompt string `toml:"system_prompt"`
	MaxTokens    int    `toml:"max_tokens"`
	// CommitInterval is the partial-commit throttle window during streaming.
	CommitInterval string `toml:"commit_interval"`
	MaxToolRounds  int    `toml:"max_tool_rounds"`
}

// LoadOptions controls config loading behavior.
type LoadOptions struct {
	Path string
}

// AgentSettings is the validated, parsed agent configuration.
type AgentSettings struct {
	SystemPrompt   string
	MaxTokens      int
	CommitInterval time.Duration
	MaxToolRounds  int
}

// AnthropicSettings is a validated Anthropic runtime settings snapshot.
type AnthropicSettings struct {
	APIKey  string
	Model   string
	BaseURL string
	Version string
	Retry   RetrySettings
}

// RetrySettings is the parsed retry policy.
type RetrySettings struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Default returns application defaults.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Anthropic: AnthropicProviderConfig{
				Model:   defaultAnthropicModel,
				Version: defaultAnthropicVersion,
				Retry: RetryConfig{
					MaxRetries: defaultRetryMaxRetries,
					BaseDelay:  defaultRetryBaseDelay,
					MaxDelay:   defaultRetryMaxDelay,
				},
			},
		},
		Search: SearchConfig{
			MaxResults: defaultSearchResults,
		},
		Agent: AgentConfig{
			MaxTokens:      defaultMaxTokens,
			CommitInterval: defaultCommitInterval,
			MaxToolRounds:  defaultMaxToolRounds,
		},
	}
}

// Load reads the config file then applies environment variable overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = defaultConfigPath()
	}

	if err := mergeConfigFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AnthropicSettings returns validated settings suitable for runtime wiring.
func (c Config) AnthropicSettings() (AnthropicSettings, error) {
	baseDelay, err := time.ParseDuration(strings.TrimSpace(c.Provider.Anthropic.Retry.BaseDelay))
	if err != nil {
		return AnthropicSettings{}, fmt.Errorf("%w: parse anthropic retry base_delay: %v", ErrInvalidConfig, err)
	}
	maxDelay, err := time.ParseDuration(strings.TrimSpace(c.Provider.Anthropic.Retry.MaxDelay))
	if err != nil {
		return AnthropicSettings{}, fmt.Errorf("%w: parse anthropic retry max_delay: %v", ErrInvalidConfig, err)
	}
	if c.Provider.Anthropic.Retry.MaxRetries < 0 {
		return AnthropicSettings{}, fmt.Errorf("%w: anthropic retry max_retries must be >= 0", ErrInvalidConfig)
	}

	return AnthropicSettings{
		APIKey:  strings.TrimSpace(c.Provider.Anthropic.APIKey),
		Model:   strings.TrimSpace(c.Provider.Anthropic.Model),
		BaseURL: strings.TrimSpace(c.Provider.Anthropic.BaseURL),
		Version: strings.TrimSpace(c.Provider.Anthropic.Version),
		Retry: RetrySettings{
			MaxRetries: c.Provider.Anthropic.Retry.MaxRetries,
			BaseDelay:  baseDelay,
			MaxDelay:   maxDelay,
		},
	}, nil
}

// AgentSettings returns validated agent settings.
func (c Config) AgentSettings() (AgentSettings, error) {
	interval, err := time.ParseDuration(strings.TrimSpace(c.Agent.CommitInterval))
	if err != nil {
		return AgentSettings{}, fmt.Errorf("%w: parse agent commit_interval: %v", ErrInvalidConfig, err)
	}
	if interval <= 0 {
		return AgentSettings{}, fmt.Errorf("%w: agent commit_interval must be positive", ErrInvalidConfig)
	}
	if c.Agent.MaxToolRounds <= 0 {
		return AgentSettings{}, fmt.Errorf("%w: agent max_tool_rounds must be positive", ErrInvalidConfig)
	}

	return AgentSettings{
		SystemPrompt:   strings.TrimSpace(c.Agent.SystemPrompt),
		MaxTokens:      c.Agent.MaxTokens,
		CommitInterval: interval,
		MaxToolRounds:  c.Agent.MaxToolRounds,
	}, nil
}

func mergeConfigFile(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value, ok := os.LookupEnv(envAnthropicAPIKey); ok {
		cfg.Provider.Anthropic.APIKey = value
	}
	if value, ok := os.LookupEnv(envAnthropicModel); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Anthropic.Model = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAnthropicBaseURL); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Anthropic.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envSearchAPIKey); ok {
		cfg.Search.APIKey = value
	}
	if value, ok := os.LookupEnv(envSearchBaseURL); ok && strings.TrimSpace(value) != "" {
		cfg.Search.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envCommitInterval); ok && strings.TrimSpace(value) != "" {
		cfg.Agent.CommitInterval = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envMaxToolRounds); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envMaxToolRounds, err)
		}
		cfg.Agent.MaxToolRounds = parsed
	}
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Provider.Anthropic.Model) == "" {
		return fmt.Errorf("%w: provider.anthropic.model is required", ErrInvalidConfig)
	}
	if _, err := cfg.AnthropicSettings(); err != nil {
		return err
	}
	if _, err := cfg.AgentSettings(); err != nil {
		return err
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigRelativePath)
}
