package agent

import (
	"time"

	"github.com/effective-security/mcpchat/llms"
	"github.com/effective-security/mcpchat/store"
)

const (
	// DefaultMaxIterations bounds tool-call round trips per turn to
	// prevent runaway loops.
	DefaultMaxIterations = 10
	// DefaultTemperature is the sampling temperature when none is set.
	DefaultTemperature = 0.7
	// DefaultSystemPrompt seeds conversations that carry no system
	// message of their own.
	DefaultSystemPrompt = "You are a helpful assistant with access to various tools. " +
		"Use the available tools when needed to answer user questions accurately."
)

// Config holds loop settings.
type Config struct {
	SystemPrompt  string
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	ToolTimeout   time.Duration
	History       []llms.Message
	Store         store.MessageStore
}

// Option customizes a Loop.
type Option func(c *Config)

// NewConfig applies options over the defaults.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		SystemPrompt:  DefaultSystemPrompt,
		MaxIterations: DefaultMaxIterations,
		Temperature:   DefaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSystemPrompt sets the system prompt. An empty prompt disables
// system message seeding.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithMaxIterations bounds tool-call round trips per turn.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxIterations = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithMaxTokens caps the model response length.
func WithMaxTokens(n int) Option {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithToolTimeout bounds each tool invocation.
func WithToolTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ToolTimeout = d
	}
}

// WithHistory seeds the conversation with existing messages.
func WithHistory(messages []llms.Message) Option {
	return func(c *Config) {
		c.History = messages
	}
}

// WithStore persists conversation history after each turn.
func WithStore(s store.MessageStore) Option {
	return func(c *Config) {
		c.Store = s
	}
}
