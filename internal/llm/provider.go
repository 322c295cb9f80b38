package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Selector resolves the model id for a request.
type Selector interface {
	Select(ctx context.Context) string
}

type ProviderConfig struct {
	Provider     string
	OpenRouter   OpenRouterConfig
	GeminiAPIKey string
	GeminiModel  string
}

// NewProvider builds the configured backend. It returns a nil Client when
// the provider has no credential, which callers treat as "not configured".
// The Selector is nil for backends that pick their own model.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Client, Selector, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil, nil
		}
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using gemini", zap.String("model", client.model))
		return client, nil, nil
	case "openrouter", "":
		if cfg.OpenRouter.APIKey == "" {
			return nil, nil, nil
		}
		client := NewOpenRouterClient(cfg.OpenRouter)
		logger.Info("using openrouter", zap.String("baseURL", client.baseURL))
		return client, NewModelSelector(client, logger), nil
	default:
		return nil, nil, fmt.Errorf("unknown LLM provider: %s (supported: openrouter, gemini)", cfg.Provider)
	}
}
