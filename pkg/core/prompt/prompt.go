// Package prompt holds the prompt templates sent to LLM providers. Templates
// can be overridden at runtime from JSON files.
package prompt

// Template is a reusable prompt with metadata.
type Template struct {
	ID             string `json:"id"` // e.g. "validation.financial_validator"
	Name           string `json:"name"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	SystemPrompt   string `json:"system_prompt"`
	UserPromptTmpl string `json:"user_prompt_template"` // text/template source
	Version        string `json:"version"`
}

// Vars holds template values for rendering.
type Vars map[string]interface{}

// Set adds a variable and returns the map for chaining.
func (v Vars) Set(key string, value interface{}) Vars {
	v[key] = value
	return v
}
