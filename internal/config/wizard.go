package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .winsmith.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to winsmith! Let's configure your workspace.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select generation provider",
		Items: []string{"anthropic", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Quality tier.
	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite   — fast & cheap (haiku / gpt-4o-mini)",
			"normal — balanced (sonnet / gpt-4o)",
			"max    — highest quality (opus / gpt-4)",
		},
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	quality := tiers[qualityIdx]

	// 3. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: ".winsmith",
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 4. Statement length ceiling.
	lengthPrompt := promptui.Prompt{
		Label:   "Statement length ceiling (characters)",
		Default: "350",
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive number")
			}
			return nil
		},
	}
	lengthStr, err := lengthPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("length ceiling: %w", err)
	}
	strictMax, _ := strconv.Atoi(lengthStr)

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = GetPreset(provider, quality)
	cfg.Quality = quality
	cfg.DataDir = dataDir
	cfg.Refine.StrictMaxChars = strictMax
	if cfg.Refine.RelaxedMaxChars < strictMax {
		cfg.Refine.RelaxedMaxChars = strictMax * 2
	}

	// Check for API key.
	if envVar := APIKeyEnvVar(provider); envVar != "" {
		if os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running winsmith serve.\n", envVar)
		}
	}

	configPath := ".winsmith.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}
