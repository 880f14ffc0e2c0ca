package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the normalized configuration for values that would break
// the pipeline at runtime. The API key is deliberately not required here so
// read-only commands (status, opinions) work without one; stages that call
// the LLM check it themselves.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		problems = append(problems, "paths.output_dir is required")
	}

	if c.LLM.TimeoutSeconds < 0 {
		problems = append(problems, "llm.timeout_seconds must not be negative")
	}

	if c.Pipeline.RelationBatchSize < 1 {
		problems = append(problems, "pipeline.relation_batch_size must be at least 1")
	}
	if c.Pipeline.SimilarityThreshold <= 0 || c.Pipeline.SimilarityThreshold > 1 {
		problems = append(problems, "pipeline.similarity_threshold must be in (0, 1]")
	}
	if c.Pipeline.EvolutionRootFraction <= 0 || c.Pipeline.EvolutionRootFraction > 1 {
		problems = append(problems, "pipeline.evolution_root_fraction must be in (0, 1]")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not supported (debug, info, warn, error)", c.Logging.Level))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
