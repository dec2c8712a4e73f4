package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LLMRouter implements VisionClient and routes requests by tier.
type LLMRouter struct {
	logger  *zap.Logger
	clients map[Tier]VisionClient
}

var _ VisionClient = (*LLMRouter)(nil)

// NewLLMRouter creates a router with a client for each tier.
func NewLLMRouter(logger *zap.Logger, operation, extraction VisionClient) (*LLMRouter, error) {
	if operation == nil || extraction == nil {
		return nil, fmt.Errorf("both operation and extraction tier clients must be provided")
	}
	return &LLMRouter{
		logger: logger.Named("llm_router"),
		clients: map[Tier]VisionClient{
			TierOperation:  operation,
			TierExtraction: extraction,
		},
	}, nil
}

// Generate selects the client for the request's Tier. An empty tier means operation.
func (r *LLMRouter) Generate(ctx context.Context, req VisionRequest) (string, error) {
	tier := req.Tier
	if tier == "" {
		tier = TierOperation
	}
	client, ok := r.clients[tier]
	if !ok {
		return "", fmt.Errorf("no LLM client configured for tier: %s", tier)
	}
	r.logger.Debug("Routing LLM request", zap.String("tier", string(tier)))
	return client.Generate(ctx, req)
}
