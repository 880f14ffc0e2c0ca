package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"opiniongraph/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.toml")
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Pipeline.RelationBatchSize != 20 {
		t.Fatalf("unexpected default batch size: %d", cfg.Pipeline.RelationBatchSize)
	}
	if cfg.Pipeline.SimilarityThreshold != 0.7 {
		t.Fatalf("unexpected default similarity threshold: %f", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected default log format: %q", cfg.Logging.Format)
	}
}

func TestLoadExpandsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[paths]
data_dir = "`+dir+`/data"
output_dir = "`+dir+`/out"

[llm]
model = "  test/model  "

[pipeline]
relation_batch_size = 5
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q %v", resolved, exists)
	}
	if cfg.LLM.Model != "test/model" {
		t.Fatalf("expected trimmed model, got %q", cfg.LLM.Model)
	}
	if cfg.Pipeline.RelationBatchSize != 5 {
		t.Fatalf("unexpected batch size: %d", cfg.Pipeline.RelationBatchSize)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("expected absolute data dir, got %q", cfg.Paths.DataDir)
	}
}

func TestLoadEnvAPIKeyOverride(t *testing.T) {
	t.Setenv(config.EnvAPIKey, "env-key")
	path := writeConfig(t, `
[llm]
api_key = "file-key"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected environment override, got %q", cfg.LLM.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	path := writeConfig(t, `
[pipeline]
similarity_threshold = 1.5

[logging]
format = "xml"
`)
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "similarity_threshold") {
		t.Fatalf("expected similarity_threshold complaint, got %v", err)
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format complaint, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestDerivedPaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
[paths]
data_dir = "`+dir+`"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.CheckpointPath(); got != filepath.Join(dir, "checkpoint.db") {
		t.Fatalf("unexpected checkpoint path: %q", got)
	}
	if got := cfg.OpinionsPath(); got != filepath.Join(dir, "opinions.json") {
		t.Fatalf("unexpected opinions path: %q", got)
	}
}
