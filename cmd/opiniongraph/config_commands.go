package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"opiniongraph/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a starter configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}

			if _, err := os.Stat(target); err == nil {
				if !overwrite {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				}
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("check config path: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote starter configuration to %s\n", target)
			fmt.Fprintf(out, "Set [llm].api_key there or export %s before running the pipeline.\n", config.EnvAPIKey)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// initTarget resolves where config init writes: the --path flag when given,
// the default location otherwise.
func initTarget(flagValue string) (string, error) {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		path, err := config.ExpandPath(trimmed)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return path, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and show the resolved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintln(stdout, "Configuration valid")
			fmt.Fprintln(stdout, renderTable(
				[]column{{title: "Setting"}, {title: "Value"}},
				[][]string{
					{"Data directory", cfg.Paths.DataDir},
					{"Output directory", cfg.Paths.OutputDir},
					{"Log directory", cfg.Paths.LogDir},
					{"Model", cfg.LLM.Model},
					{"API key set", yesNo(strings.TrimSpace(cfg.LLM.APIKey) != "")},
					{"Relation batch size", strconv.Itoa(cfg.Pipeline.RelationBatchSize)},
					{"Similarity threshold", fmt.Sprintf("%.2f", cfg.Pipeline.SimilarityThreshold)},
					{"Evolution root fraction", fmt.Sprintf("%.2f", cfg.Pipeline.EvolutionRootFraction)},
					{"Log format", cfg.Logging.Format},
					{"Log level", cfg.Logging.Level},
				},
			))
			return nil
		},
	}
}
