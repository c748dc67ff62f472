// Package llmfactory builds Model instances from configuration.
package llmfactory

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/config"
	"github.com/effective-security/mcpchat/llms"
	"github.com/effective-security/mcpchat/llms/anthropic"
	"github.com/effective-security/mcpchat/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "llmfactory")

// New creates a model from the provider configuration.
func New(cfg *config.LLMConfig) (llms.Model, error) {
	provider := llms.ProviderType(strings.ToUpper(cfg.Provider))

	var model llms.Model
	var err error
	switch provider {
	case llms.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithModel(cfg.Model),
		}
		if cfg.Token != "" {
			opts = append(opts, anthropic.WithToken(cfg.Token))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		model, err = anthropic.New(opts...)
	case llms.ProviderOpenAI, llms.ProviderOpenRouter:
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
		}
		if cfg.Token != "" {
			opts = append(opts, openai.WithToken(cfg.Token))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if provider == llms.ProviderOpenRouter {
			model, err = openai.NewOpenRouter(opts...)
		} else {
			model, err = openai.New(opts...)
		}
	default:
		return nil, errors.Newf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create %s model", provider)
	}

	logger.KV(xlog.DEBUG, "provider", provider, "model", cfg.Model)
	return model, nil
}
