package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"opiniongraph/internal/checkpoint"
	"opiniongraph/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		scope      string
		startStage string
		force      bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the opinion graph pipeline for a scope",
		Long: `Run the analysis stages over the raw opinions snapshot in the output
directory: categorization, relationship analysis, opinion merging, evolution
detection, and speaker tracking. Progress is checkpointed per scope; an
interrupted run resumes at the first incomplete stage.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.Options{
				Scope:  strings.TrimSpace(scope),
				Force:  force,
				DryRun: dryRun,
			}
			if trimmed := strings.TrimSpace(startStage); trimmed != "" {
				stage, ok := checkpoint.ParseStage(trimmed)
				if !ok {
					return fmt.Errorf("unknown stage %q (valid: %s)", trimmed, stageNames())
				}
				opts.StartStage = stage
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			oracle, err := ctx.newOracle()
			if err != nil {
				return err
			}
			if !dryRun {
				if err := oracle.HealthCheck(cmd.Context()); err != nil {
					return fmt.Errorf("llm health check: %w", err)
				}
			}
			checkpoints, err := ctx.openCheckpoints()
			if err != nil {
				return err
			}
			defer checkpoints.Close()

			runner := pipeline.New(ctx.configValue(), checkpoints, oracle, logger)
			summary, err := runner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if summary.NoOp {
				fmt.Fprintf(stdout, "Scope %s already processed; use --force to rerun\n", summary.Scope)
				return nil
			}
			if dryRun {
				fmt.Fprintf(stdout, "Dry run for scope %s; stages that would run:\n", summary.Scope)
				for _, stage := range summary.StagesRun {
					fmt.Fprintf(stdout, "  %s\n", stage)
				}
				return nil
			}

			fmt.Fprintf(stdout, "Pipeline finished for scope %s\n", summary.Scope)
			fmt.Fprintln(stdout, renderTable(
				[]column{{title: "Metric"}, {title: "Value", numeric: true}},
				[][]string{
					{"Stages run", fmt.Sprintf("%d", len(summary.StagesRun))},
					{"Raw opinions", fmt.Sprintf("%d", summary.RawCount)},
					{"Relationships", fmt.Sprintf("%d", summary.RelationshipCount)},
					{"Final opinions", fmt.Sprintf("%d", summary.FinalCount)},
					{"Opinions folded", fmt.Sprintf("%d", summary.MergeStats.AppliedSameOpinion)},
					{"Evolution chains", fmt.Sprintf("%d", summary.ChainCount)},
					{"Speaker journeys", fmt.Sprintf("%d", summary.JourneyCount)},
				},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "Scope id to process (typically a podcast feed id)")
	cmd.Flags().StringVar(&startStage, "start-stage", "", "Skip stages before this one")
	cmd.Flags().BoolVar(&force, "force", false, "Rerun stages the checkpoint marks complete")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report which stages would run without executing")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func stageNames() string {
	names := make([]string, 0, len(checkpoint.Stages))
	for _, stage := range checkpoint.Stages {
		names = append(names, string(stage))
	}
	return strings.Join(names, ", ")
}
