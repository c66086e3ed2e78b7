package cmd

import (
	"fmt"

	"github.com/jcortez/winsmith/internal/config"
	"github.com/jcortez/winsmith/internal/llm"
)

// buildProvider creates the configured generation provider, wrapped with
// the configured rate limit. The API key is resolved from config with
// the provider's conventional env var as fallback.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	key := cfg.ResolveAPIKey()
	if key == "" && cfg.Provider != config.ProviderOllama {
		return nil, fmt.Errorf("no API key configured: set api_key in %s or %s in the environment",
			cfgFile, config.APIKeyEnvVar(cfg.Provider))
	}

	provider, err := llm.NewProvider(string(cfg.Provider), key, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	if cfg.RateLimitRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RateLimitRPM)
	}
	return provider, nil
}
