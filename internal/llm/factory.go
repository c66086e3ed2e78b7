package llm

import "fmt"

// NewProvider creates a new provider of the given type. The API key comes
// from configuration, not the environment, so callers (and tests) control
// the credential explicitly. For ollama the apiKey argument carries the
// host URL and may be empty.
func NewProvider(providerType, apiKey, model string) (Provider, error) {
	switch providerType {
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "ollama":
		host := apiKey
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
