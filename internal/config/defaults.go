package config

// qualityPresets maps each provider+quality combination to its model choice.
var qualityPresets = map[ProviderType]map[QualityTier]string{
	ProviderAnthropic: {
		QualityLite:   "claude-haiku-4-5-20251001",
		QualityNormal: "claude-sonnet-4-5-20250929",
		QualityMax:    "claude-opus-4-6",
	},
	ProviderOpenAI: {
		QualityLite:   "gpt-4o-mini",
		QualityNormal: "gpt-4o",
		QualityMax:    "gpt-4",
	},
	ProviderOllama: {
		QualityLite:   "llama3",
		QualityNormal: "llama3",
		QualityMax:    "llama3:70b",
	},
}

// DefaultBannedWords is vocabulary the generators are told to avoid:
// inflated verbs, vague scope words, and cliché phrasing that reviewers
// of narrative statements routinely reject.
var DefaultBannedWords = []string{
	"spearheaded",
	"utilized",
	"leveraged",
	"synergized",
	"various",
	"numerous",
	"impactful",
	"best-in-class",
	"world-class",
	"go-getter",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:     ProviderAnthropic,
		Model:        "claude-sonnet-4-5-20250929",
		Quality:      QualityNormal,
		DataDir:      ".winsmith",
		RateLimitRPM: 30,
		Server: ServerConfig{
			Port: 8470,
		},
		Refine: RefineConfig{
			StrictMaxChars:  350,
			RelaxedMaxChars: 600,
			MinAnswers:      2,
			LoopBackCap:     2,
			TimeoutSeconds:  60,
			BannedWords:     DefaultBannedWords,
		},
	}
}

// GetPreset returns the model for the given provider and tier.
// Returns the Normal Anthropic model if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) string {
	if tiers, ok := qualityPresets[provider]; ok {
		if model, ok := tiers[tier]; ok {
			return model
		}
	}
	return qualityPresets[ProviderAnthropic][QualityNormal]
}
