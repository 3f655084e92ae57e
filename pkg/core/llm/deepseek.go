package llm

import (
	"context"
	"fmt"
	"net/http"
)

const deepSeekDefaultURL = "https://api.deepseek.com"

// DeepSeekProvider calls the OpenAI-compatible DeepSeek endpoint.
type DeepSeekProvider struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

var _ Provider = (*DeepSeekProvider)(nil)

func (p *DeepSeekProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	key := apiKey(options, p.APIKey, "DEEPSEEK_API_KEY")
	if key == "" {
		return "", fmt.Errorf("DEEPSEEK_API_KEY_MISSING: set DEEPSEEK_API_KEY")
	}
	url := p.BaseURL
	if url == "" {
		url = deepSeekDefaultURL
	}
	return chatCompletion(ctx, compatEndpoint{
		code:    "DEEPSEEK",
		key:     key,
		baseURL: url,
		model:   modelName(options, p.Model, "deepseek-chat"),
		client:  p.HTTPClient,
	}, prompt, systemPrompt, options)
}

func (p *DeepSeekProvider) AdaptInstructions(raw string) string {
	return raw
}

func (p *DeepSeekProvider) Configured() bool {
	return apiKey(nil, p.APIKey, "DEEPSEEK_API_KEY") != ""
}
