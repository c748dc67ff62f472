// Package config loads and validates the application configuration from
// TOML, YAML, or JSON files, with environment variable expansion.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/mcpclient"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

// Config is the application configuration.
type Config struct {
	// LLM selects the model provider and its settings.
	LLM LLMConfig `json:"llm" yaml:"llm" toml:"llm"`

	// Chat configures the conversation loop.
	Chat ChatConfig `json:"chat" yaml:"chat" toml:"chat"`

	// Servers lists the MCP servers to connect to.
	Servers []*mcpclient.ServerConfig `json:"servers" yaml:"servers" toml:"servers" validate:"dive"`

	// Redis enables Redis backed chat history when set.
	Redis *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty" toml:"redis,omitempty"`
}

// LLMConfig selects and configures the model provider.
type LLMConfig struct {
	// Provider is one of ANTHROPIC, OPENAI, OPENROUTER.
	Provider string `json:"provider" yaml:"provider" toml:"provider" validate:"required,oneof=ANTHROPIC OPENAI OPENROUTER"`
	// Model is the provider model name.
	Model string `json:"model" yaml:"model" toml:"model" validate:"required"`
	// Token is the API key. Empty falls back to the provider's
	// environment variable.
	Token string `json:"token,omitempty" yaml:"token,omitempty" toml:"token,omitempty"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
}

// ChatConfig configures the conversation loop.
type ChatConfig struct {
	SystemPrompt  string        `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty" toml:"system_prompt,omitempty"`
	MaxIterations int           `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" toml:"max_iterations,omitempty" validate:"omitempty,min=1"`
	Temperature   float64       `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	MaxTokens     int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty" validate:"omitempty,min=1"`
	ToolTimeout   time.Duration `json:"tool_timeout,omitempty" yaml:"tool_timeout,omitempty" toml:"tool_timeout,omitempty"`
}

// RedisConfig configures Redis backed chat history.
type RedisConfig struct {
	// URL is a redis:// connection string.
	URL string `json:"url" yaml:"url" toml:"url" validate:"required"`
	// Prefix namespaces all keys.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
}

// Load reads, expands, and validates the configuration file. TOML files
// are decoded by extension; everything else goes through the generic
// loader, which handles YAML and JSON with ${ENV} expansion.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return nil, errors.New("config file is required")
	}

	if strings.HasSuffix(file, ".toml") {
		if _, err := toml.DecodeFile(file, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", file)
		}
	} else {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", file)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, including per-server transport
// requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WithMessage(err, "invalid configuration")
	}

	seen := make(map[string]bool, len(c.Servers))
	for _, srv := range c.Servers {
		if err := srv.Validate(); err != nil {
			return err
		}
		if seen[srv.Name] {
			return errors.Newf("duplicate server name: %q", srv.Name)
		}
		seen[srv.Name] = true
	}
	return nil
}
