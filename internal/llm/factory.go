package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Options selects and configures a provider.
type Options struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	MaxRetries        int
	RequestsPerMinute int
	Logger            *zap.Logger
}

// New builds the configured provider, wrapped in a rate limiter when one is set.
func New(opts Options) (Client, error) {
	var (
		client Client
		err    error
	)
	switch strings.ToLower(opts.Provider) {
	case "", ProviderAnthropic:
		client, err = NewAnthropicClient(AnthropicConfig{
			APIKey:     opts.APIKey,
			BaseURL:    opts.BaseURL,
			Model:      opts.Model,
			MaxRetries: opts.MaxRetries,
			Logger:     opts.Logger,
		})
	case ProviderOpenAI:
		client, err = NewOpenAIClient(OpenAIConfig{
			APIKey:     opts.APIKey,
			BaseURL:    opts.BaseURL,
			Model:      opts.Model,
			MaxRetries: opts.MaxRetries,
			Logger:     opts.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRateLimited(client, opts.RequestsPerMinute), nil
}
