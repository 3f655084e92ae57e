package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls the chat completions API through go-openai.
type OpenAIProvider struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

var _ Provider = (*OpenAIProvider)(nil)

func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	key := apiKey(options, p.APIKey, "OPENAI_API_KEY")
	if key == "" {
		return "", fmt.Errorf("OPENAI_API_KEY_MISSING: set OPENAI_API_KEY")
	}
	return chatCompletion(ctx, compatEndpoint{
		code:    "OPENAI",
		key:     key,
		baseURL: p.BaseURL,
		model:   modelName(options, p.Model, openai.GPT4oMini),
		client:  p.HTTPClient,
	}, prompt, systemPrompt, options)
}

func (p *OpenAIProvider) AdaptInstructions(raw string) string {
	return raw
}

func (p *OpenAIProvider) Configured() bool {
	return apiKey(nil, p.APIKey, "OPENAI_API_KEY") != ""
}

// =============================================================================
// OPENAI-COMPATIBLE ENDPOINTS
// =============================================================================

// compatEndpoint describes one OpenAI-compatible chat completions API.
// baseURL is the API root without /chat/completions; empty means OpenAI.
type compatEndpoint struct {
	code    string
	key     string
	baseURL string
	model   string
	client  *http.Client
}

func chatCompletion(ctx context.Context, ep compatEndpoint, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	cfg := openai.DefaultConfig(ep.key)
	if ep.baseURL != "" {
		cfg.BaseURL = ep.baseURL
	}
	cfg.HTTPClient = httpClient(ep.client)
	client := openai.NewClientWithConfig(cfg)

	req := openai.ChatCompletionRequest{
		Model:       ep.model,
		Temperature: 0.1,
		MaxTokens:   4096,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if wantsJSON(options) {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", compatError(ep.code, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s_NO_CHOICES", ep.code)
	}
	return resp.Choices[0].Message.Content, nil
}

// compatError maps go-openai failures onto APIError so callers can tell
// transient replies apart.
func compatError(code string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &APIError{Code: code, Status: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &APIError{Code: code, Status: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return fmt.Errorf("%s_API_CALL_ERROR: %w", code, err)
}
