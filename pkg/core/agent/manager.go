package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"finpulse/pkg/core/llm"
	"finpulse/pkg/core/logging"
)

// RoleAssessment is the agent role that produces SME assessments.
const RoleAssessment = "assessment"

type Config struct {
	ActiveProvider string                 `yaml:"active_provider"`
	Agents         map[string]AgentConfig `yaml:"agents"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Model       string `yaml:"model"`    // Optional model override
	Description string `yaml:"description"`
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
}

// DefaultProviders returns one instance of every supported provider, keyed by name.
func DefaultProviders() map[string]llm.Provider {
	return map[string]llm.Provider{
		"openai":        &llm.OpenAIProvider{},
		"gemini":        &llm.GeminiProvider{},
		"gemini-legacy": &llm.LegacyGeminiProvider{},
		"deepseek":      &llm.DeepSeekProvider{},
		"qwen":          &llm.QwenProvider{},
	}
}

// NewManager builds a manager over the given providers; nil means DefaultProviders.
func NewManager(config Config, providers map[string]llm.Provider) *Manager {
	if providers == nil {
		providers = DefaultProviders()
	}
	if config.ActiveProvider == "" {
		config.ActiveProvider = "gemini"
	}
	return &Manager{config: config, providers: providers}
}

func (m *Manager) GetProvider(agentType string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 1. Check for agent-specific override
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p
		}
	}

	// 2. Use global active provider
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}

	// 3. Fallback
	return m.providers["gemini"]
}

// GetProviderByName retrieves a provider instance by its specific name (e.g. "deepseek", "gemini")
func (m *Manager) GetProviderByName(name string) llm.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[name]
}

// ExecutePrompt handles instruction adaptation before sending to the model
func (m *Manager) ExecutePrompt(ctx context.Context, agentType string, rawPrompt string, rawSystemPrompt string, options map[string]interface{}) (string, error) {
	provider := m.GetProvider(agentType)
	if provider == nil {
		return "", fmt.Errorf("no provider configured for agent %q", agentType)
	}

	opts := make(map[string]interface{}, len(options)+1)
	for k, v := range options {
		opts[k] = v
	}
	m.mu.RLock()
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Model != "" {
		if _, set := opts[llm.OptModel]; !set {
			opts[llm.OptModel] = agentConfig.Model
		}
	}
	active := m.config.ActiveProvider
	m.mu.RUnlock()

	logging.For("agent").WithFields(map[string]interface{}{
		"agent":           agentType,
		"active_provider": active,
		"provider":        fmt.Sprintf("%T", provider),
	}).Debug("ExecutePrompt")

	adaptedSystemPrompt := provider.AdaptInstructions(rawSystemPrompt)
	return provider.GenerateResponse(ctx, rawPrompt, adaptedSystemPrompt, opts)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	logging.For("agent").WithField("provider", newProvider).Info("Global provider switched")
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists the registered provider names, sorted.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
