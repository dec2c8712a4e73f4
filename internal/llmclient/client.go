// Package llmclient talks to multimodal language models.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Tier selects which configured model serves a request.
type Tier string

const (
	// TierOperation drives the perception/action loop.
	TierOperation Tier = "operation"
	// TierExtraction reads lab values off the source document.
	TierExtraction Tier = "extraction"
)

// VisionRequest is one prompt with an attached screenshot.
type VisionRequest struct {
	Tier     Tier
	System   string
	Prompt   string
	Image    []byte
	MIMEType string
	// ForceJSON asks the provider for a JSON object response.
	ForceJSON bool
}

// VisionClient sends a VisionRequest and returns the raw model text.
type VisionClient interface {
	Generate(ctx context.Context, req VisionRequest) (string, error)
}

// ErrEmptyResponse is returned when the model answered with no text.
var ErrEmptyResponse = errors.New("model returned no content")

// APIError is a non-success answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	// Status is the provider's symbolic status (e.g. RESOURCE_EXHAUSTED), when it has one.
	Status  string
	Message string
}

func (e *APIError) Error() string {
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s API error: status %d (%s): %s", e.Provider, e.StatusCode, status, e.Message)
}

// RateLimited reports whether the provider refused the request for quota reasons.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

// Unavailable reports whether the provider or a gateway in front of it is temporarily down.
func (e *APIError) Unavailable() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return e.Status == "UNAVAILABLE" || e.Status == "DEADLINE_EXCEEDED"
}
