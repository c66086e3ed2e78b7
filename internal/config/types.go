package config

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies a text-generation provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
)

// RefineConfig holds the refinement workflow knobs.
type RefineConfig struct {
	// StrictMaxChars is the hard length ceiling a polished statement targets.
	StrictMaxChars int `yaml:"strict_max_chars" koanf:"strict_max_chars"`
	// RelaxedMaxChars is the soft ceiling used when merging answers, so
	// user-supplied facts are not truncated mid-pipeline.
	RelaxedMaxChars int `yaml:"relaxed_max_chars" koanf:"relaxed_max_chars"`
	// MinAnswers is how many non-blank answers are required to leave the
	// questioning stage.
	MinAnswers int `yaml:"min_answers" koanf:"min_answers"`
	// LoopBackCap is the number of refine-again iterations after which the
	// action stops being offered. It is advisory, not enforced.
	LoopBackCap int `yaml:"loop_back_cap" koanf:"loop_back_cap"`
	// TimeoutSeconds bounds each individual generation call.
	TimeoutSeconds int `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	// BannedWords are passed to every generation prompt as vocabulary to avoid.
	BannedWords []string `yaml:"banned_words" koanf:"banned_words"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"` // allow all CORS origins (dev mode)
}

// Config is the top-level winsmith configuration, corresponding to .winsmith.yml.
type Config struct {
	Provider     ProviderType `yaml:"provider" koanf:"provider"`
	Model        string       `yaml:"model" koanf:"model"`
	APIKey       string       `yaml:"api_key" koanf:"api_key"`
	OllamaHost   string       `yaml:"ollama_host" koanf:"ollama_host"`
	Quality      QualityTier  `yaml:"quality" koanf:"quality"`
	DataDir      string       `yaml:"data_dir" koanf:"data_dir"`
	RateLimitRPM int          `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	Server       ServerConfig `yaml:"server" koanf:"server"`
	Refine       RefineConfig `yaml:"refine" koanf:"refine"`
}
