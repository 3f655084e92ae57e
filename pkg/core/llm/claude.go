package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	claudeDefaultURL   = "https://api.anthropic.com/v1/messages"
	claudeDefaultModel = "claude-sonnet-4-5"
	claudeAPIVersion   = "2023-06-01"
)

// ClaudeProvider calls the Anthropic Messages API.
type ClaudeProvider struct {
	APIKey     string
	Model      string
	BaseURL    string // full messages endpoint; defaults to the public API
	MaxTokens  int
	HTTPClient *http.Client
}

var _ Provider = (*ClaudeProvider)(nil)

type claudeMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (p *ClaudeProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	key := apiKey(options, p.APIKey, "ANTHROPIC_API_KEY", "CLAUDE_API_KEY")
	if key == "" {
		return "", fmt.Errorf("CLAUDE_API_KEY_MISSING: set ANTHROPIC_API_KEY")
	}

	url := p.BaseURL
	if url == "" {
		url = claudeDefaultURL
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	req := claudeRequest{
		Model:       modelName(options, p.Model, claudeDefaultModel),
		MaxTokens:   maxTokens,
		System:      systemPrompt,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
	}
	headers := map[string]string{
		"x-api-key":         key,
		"anthropic-version": claudeAPIVersion,
	}

	var res claudeResponse
	if err := postJSON(ctx, p.HTTPClient, url, headers, req, &res, "CLAUDE"); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range res.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("CLAUDE_EMPTY_RESPONSE: stop_reason=%s", res.StopReason)
	}
	return sb.String(), nil
}

// AdaptInstructions asks for a bare JSON body; Claude otherwise tends to wrap
// structured output in prose.
func (p *ClaudeProvider) AdaptInstructions(raw string) string {
	if strings.Contains(strings.ToLower(raw), "json") {
		return raw + "\n\nRespond with the JSON object only, without commentary."
	}
	return raw
}

func (p *ClaudeProvider) Configured() bool {
	return apiKey(nil, p.APIKey, "ANTHROPIC_API_KEY", "CLAUDE_API_KEY") != ""
}

// postJSON sends body to url and decodes a 200 response into out. code
// prefixes every error, e.g. CLAUDE.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out interface{}, code string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s_MARSHAL_ERROR: %w", code, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s_REQ_CREATE_ERROR: %w", code, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := httpClient(client).Do(req)
	if err != nil {
		return fmt.Errorf("%s_API_CALL_ERROR: %w", code, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s_READ_BODY_ERROR: %w", code, err)
	}
	if res.StatusCode != http.StatusOK {
		return &APIError{Code: code, Status: res.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s_UNMARSHAL_ERROR: %w", code, err)
	}
	return nil
}
