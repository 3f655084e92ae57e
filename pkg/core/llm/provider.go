// Package llm adapts hosted language models to a single Provider interface.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
	// Configured reports whether credentials are available.
	Configured() bool
}

// DefaultHTTPTimeout bounds a single provider call when the caller's context
// carries no deadline.
const DefaultHTTPTimeout = 60 * time.Second

var defaultClient = &http.Client{Timeout: DefaultHTTPTimeout}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return defaultClient
}

// apiKey resolves a key from options, then the configured value, then the
// listed environment variables.
func apiKey(options map[string]interface{}, configured string, envs ...string) string {
	if val, ok := options["api_key"].(string); ok && val != "" {
		return val
	}
	if configured != "" {
		return configured
	}
	for _, e := range envs {
		if v := os.Getenv(e); v != "" {
			return v
		}
	}
	return ""
}

func modelName(options map[string]interface{}, configured, fallback string) string {
	if val, ok := options["model"].(string); ok && val != "" {
		return val
	}
	if configured != "" {
		return configured
	}
	return fallback
}

func wantsJSON(options map[string]interface{}) bool {
	if val, ok := options["response_format"].(map[string]interface{}); ok {
		return val["type"] == "json_object"
	}
	return false
}

// APIError is a non-200 reply from a provider endpoint.
type APIError struct {
	Code   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s_API_ERROR: status=%d body=%s", e.Code, e.Status, e.Body)
}

// Transient reports whether a retry may succeed.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
