// Package agent routes agent roles to configured LLM providers.
package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"financial_dashboard/pkg/core/llm"
)

// FinancialValidator is the agent role used for deep validation of field sets.
const FinancialValidator = "financial_validator"

// DefaultProvider is used when the config names no known provider.
const DefaultProvider = "claude"

type Config struct {
	ActiveProvider string                    `yaml:"active_provider"`
	Agents         map[string]AgentConfig    `yaml:"agents"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Description string `yaml:"description"`
}

// ProviderConfig carries per-provider settings. Keys come from the
// environment and are never read from yaml.
type ProviderConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// LoadConfig reads a models.yaml file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read agent config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	return cfg, nil
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	log       zerolog.Logger
}

func NewManager(config Config, log zerolog.Logger) *Manager {
	pc := func(name string) ProviderConfig { return config.Providers[name] }
	return &Manager{
		config: config,
		log:    log,
		providers: map[string]llm.Provider{
			"claude":   &llm.ClaudeProvider{Model: pc("claude").Model, BaseURL: pc("claude").BaseURL},
			"openai":   &llm.OpenAIProvider{Model: pc("openai").Model, BaseURL: pc("openai").BaseURL},
			"gemini":   &llm.GeminiProvider{Model: pc("gemini").Model},
			"deepseek": &llm.DeepSeekProvider{Model: pc("deepseek").Model, BaseURL: pc("deepseek").BaseURL},
			"qwen":     &llm.QwenProvider{Model: pc("qwen").Model, BaseURL: pc("qwen").BaseURL},
		},
	}
}

// Register adds or replaces a provider under name.
func (m *Manager) Register(name string, p llm.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// ProviderName resolves the provider name for an agent type: agent override,
// then the active provider, then DefaultProvider.
func (m *Manager) ProviderName(agentType string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ac, ok := m.config.Agents[agentType]; ok && ac.Provider != "" {
		if _, ok := m.providers[ac.Provider]; ok {
			return ac.Provider
		}
	}
	if _, ok := m.providers[m.config.ActiveProvider]; ok {
		return m.config.ActiveProvider
	}
	return DefaultProvider
}

func (m *Manager) GetProvider(agentType string) llm.Provider {
	name := m.ProviderName(agentType)
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name]
}

// ExecutePrompt adapts the system prompt to the selected model and sends it.
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider := m.GetProvider(agentType)
	if provider == nil {
		return "", fmt.Errorf("no provider for agent %s", agentType)
	}
	m.log.Debug().
		Str("agent", agentType).
		Str("provider", m.ProviderName(agentType)).
		Msg("executing prompt")
	return provider.GenerateResponse(ctx, rawPrompt, provider.AdaptInstructions(rawSystemPrompt), options)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	m.log.Info().Str("provider", newProvider).Msg("global provider set")
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.providers))
	for k := range m.providers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Providers lists the registered provider names.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namesLocked()
}
