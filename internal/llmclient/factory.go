// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/medipilot/internal/config"
)

// NewClient creates a VisionClient for a single model configuration.
func NewClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (VisionClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI, config.ProviderOllama:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI, config.ProviderOllama)
	}
}

// NewFromConfig builds the tier router for the configured operation and
// extraction models, sharing one client when both name the same model, and
// wraps it in the request throttle.
func NewFromConfig(ctx context.Context, cfg config.LLMRouterConfig, logger *zap.Logger) (VisionClient, error) {
	built := make(map[string]VisionClient)
	get := func(name string) (VisionClient, error) {
		if c, ok := built[name]; ok {
			return c, nil
		}
		m, ok := cfg.Models[name]
		if !ok {
			return nil, fmt.Errorf("model %q is not defined under agent.llm.models", name)
		}
		c, err := NewClient(ctx, m, logger)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", name, err)
		}
		built[name] = c
		return c, nil
	}

	operation, err := get(cfg.OperationModel)
	if err != nil {
		return nil, err
	}
	extraction, err := get(cfg.ExtractionModel)
	if err != nil {
		return nil, err
	}
	router, err := NewLLMRouter(logger, operation, extraction)
	if err != nil {
		return nil, err
	}
	return NewThrottled(router, cfg.RequestsPerMinute, logger), nil
}
