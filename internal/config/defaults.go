package config

const (
	defaultDataDir   = "~/.local/share/opiniongraph"
	defaultOutputDir = "~/.local/share/opiniongraph/output"
	defaultLogDir    = "~/.local/share/opiniongraph/logs"

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMTitle          = "Opinion Graph Pipeline"
	defaultLLMTimeoutSeconds = 120

	defaultRelationBatchSize     = 20
	defaultSimilarityThreshold   = 0.7
	defaultEvolutionRootFraction = 0.1

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Pipeline: Pipeline{
			RelationBatchSize:     defaultRelationBatchSize,
			SimilarityThreshold:   defaultSimilarityThreshold,
			EvolutionRootFraction: defaultEvolutionRootFraction,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
