package llmclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Throttled spaces requests to stay under a provider's per-minute quota.
type Throttled struct {
	next    VisionClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ VisionClient = (*Throttled)(nil)

// NewThrottled limits next to requestsPerMinute. Zero or negative disables the limit.
func NewThrottled(next VisionClient, requestsPerMinute float64, logger *zap.Logger) *Throttled {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Duration(float64(time.Minute) / requestsPerMinute))
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("llm_throttle"),
	}
}

func (t *Throttled) Generate(ctx context.Context, req VisionRequest) (string, error) {
	r := t.limiter.Reserve()
	if !r.OK() {
		return t.next.Generate(ctx, req)
	}
	if d := r.Delay(); d > 0 {
		t.logger.Debug("Throttling LLM request", zap.Duration("delay", d))
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.Cancel()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return t.next.Generate(ctx, req)
}
