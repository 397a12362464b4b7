package config

const (
	defaultConfigPath            = "~/.config/storyboarder/config.toml"
	defaultDataDir               = "~/.local/share/storyboarder"
	defaultLogDir                = "~/.local/share/storyboarder/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultServerBind            = "127.0.0.1:7520"
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultGeminiModel           = "gemini-2.5-flash"
	defaultLLMReferer            = "https://github.com/storyboarder/storyboarder"
	defaultLLMTitle              = "Storyboarder"
	defaultLLMTemperature        = 0.4
	defaultLLMTimeoutSeconds     = 60
	defaultLLMCacheTTLSeconds    = 900
	defaultMaxRepairPasses       = 2
	defaultAttemptTimeoutSeconds = 90
	defaultAnimationStyle        = "hand-drawn 2D animation"
	defaultBatchConcurrency      = 2
	defaultRequestsPerMinute     = 30
)

// Provider names accepted in [llm] provider.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		LLM: LLM{
			Provider:        ProviderOpenRouter,
			BaseURL:         defaultLLMBaseURL,
			Model:           defaultLLMModel,
			Referer:         defaultLLMReferer,
			Title:           defaultLLMTitle,
			Temperature:     defaultLLMTemperature,
			TimeoutSeconds:  defaultLLMTimeoutSeconds,
			CacheTTLSeconds: defaultLLMCacheTTLSeconds,
		},
		Storyboard: Storyboard{
			MaxRepairPasses:       defaultMaxRepairPasses,
			AttemptTimeoutSeconds: defaultAttemptTimeoutSeconds,
			FocalPoints:           []string{"Narrator"},
			AnimationStyle:        defaultAnimationStyle,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Batch: Batch{
			Concurrency:       defaultBatchConcurrency,
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
