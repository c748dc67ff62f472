package openai

import (
	"net/http"
	"os"

	"github.com/effective-security/mcpchat/llms"
)

type config struct {
	token      string
	model      string
	baseURL    string
	provider   llms.ProviderType
	httpClient *http.Client
}

// Option customizes the model.
type Option func(c *config)

func applyOptions(opts ...Option) *config {
	cfg := &config{
		provider: llms.ProviderOpenAI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.token == "" {
		switch cfg.provider {
		case llms.ProviderOpenRouter:
			cfg.token = os.Getenv("OPENROUTER_API_KEY")
		default:
			cfg.token = os.Getenv("OPENAI_API_KEY")
		}
	}
	return cfg
}

// WithToken sets the API key. Defaults to the OPENAI_API_KEY or
// OPENROUTER_API_KEY environment variable, depending on the provider.
func WithToken(token string) Option {
	return func(c *config) {
		c.token = token
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

func withProviderType(p llms.ProviderType) Option {
	return func(c *config) {
		c.provider = p
	}
}
