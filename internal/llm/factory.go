package llm

import (
	"fmt"
	"sort"
	"strings"
)

type constructor func(Config) (Provider, error)

var providers = map[string]constructor{
	"gemini":    func(c Config) (Provider, error) { return NewGeminiProvider(c) },
	"openai":    func(c Config) (Provider, error) { return NewOpenAIProvider(c) },
	"anthropic": func(c Config) (Provider, error) { return NewAnthropicProvider(c) },
	"ollama":    func(c Config) (Provider, error) { return NewOllamaProvider(c) },
}

var aliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
}

// CanonicalName resolves a configured provider name, aliases included.
func CanonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// ProviderNames lists the supported providers.
func ProviderNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider creates the provider named in config.
func NewProvider(config Config) (Provider, error) {
	build, ok := providers[CanonicalName(config.Provider)]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: %s)", config.Provider, strings.Join(ProviderNames(), ", "))
	}
	return build(config)
}
