package cognition

import (
	"context"
	"errors"
	"net"

	"github.com/xkilldash9x/medipilot/internal/llmclient"
	"github.com/xkilldash9x/medipilot/internal/plan"
)

// Classify maps a transport error onto the plan failure taxonomy.
func Classify(err error) plan.ErrorKind {
	if err == nil {
		return plan.ErrUnknown
	}

	var apiErr *llmclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.RateLimited():
			return plan.ErrRateLimit
		case apiErr.Unavailable():
			return plan.ErrConnection
		default:
			return plan.ErrAPIFault
		}
	}

	if errors.Is(err, llmclient.ErrEmptyResponse) {
		return plan.ErrMalformedResponse
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return plan.ErrConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return plan.ErrConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return plan.ErrConnection
	}
	return plan.ErrUnknown
}
