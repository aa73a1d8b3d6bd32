package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/config"
)

// NewProvider builds the upstream provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.UpstreamConfig) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = config.ProviderGroq
	}
	if name != config.ProviderMock && cfg.APIKey == "" {
		return nil, errors.Errorf("%s: no API key (set upstream.api_key or %s)", name, config.APIKeyEnv(name))
	}

	switch name {
	case config.ProviderGroq:
		return NewGroqProvider(cfg.APIKey, cfg.BaseURL, cfg.DefaultModel), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.DefaultModel), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.DefaultModel), nil
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.DefaultModel)
	case config.ProviderMock:
		return &EchoProvider{}, nil
	default:
		return nil, errors.Errorf("unknown upstream provider %q", cfg.Provider)
	}
}
