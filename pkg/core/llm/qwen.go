package llm

import (
	"context"
	"fmt"
	"net/http"
)

// DashScope compatible mode speaks the OpenAI chat completions protocol.
const qwenDefaultURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// QwenProvider calls Qwen models through DashScope.
type QwenProvider struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

var _ Provider = (*QwenProvider)(nil)

func (p *QwenProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	key := apiKey(options, p.APIKey, "DASHSCOPE_API_KEY", "QWEN_API_KEY")
	if key == "" {
		return "", fmt.Errorf("QWEN_API_KEY_MISSING: set DASHSCOPE_API_KEY or QWEN_API_KEY")
	}
	url := p.BaseURL
	if url == "" {
		url = qwenDefaultURL
	}
	return chatCompletion(ctx, compatEndpoint{
		code:    "QWEN",
		key:     key,
		baseURL: url,
		model:   modelName(options, p.Model, "qwen-max"),
		client:  p.HTTPClient,
	}, prompt, systemPrompt, options)
}

func (p *QwenProvider) AdaptInstructions(raw string) string {
	return raw
}

func (p *QwenProvider) Configured() bool {
	return apiKey(nil, p.APIKey, "DASHSCOPE_API_KEY", "QWEN_API_KEY") != ""
}
