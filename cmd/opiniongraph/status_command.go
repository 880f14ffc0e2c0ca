package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"opiniongraph/internal/checkpoint"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint progress and extraction statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpoints, err := ctx.openCheckpoints()
			if err != nil {
				return err
			}
			defer checkpoints.Close()

			progress, err := checkpoints.Progress(cmd.Context())
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(progress) == 0 {
				fmt.Fprintln(stdout, "No scopes tracked yet")
			} else {
				rows := make([][]string, 0, len(progress))
				for _, scope := range progress {
					updated := ""
					if !scope.UpdatedAt.IsZero() {
						updated = scope.UpdatedAt.Format("2006-01-02 15:04:05")
					}
					rows = append(rows, []string{
						scope.ScopeID,
						string(scope.CurrentStage),
						fmt.Sprintf("%d/%d", scope.StagesDone, len(checkpoint.Stages)),
						yesNo(scope.Processed),
						updated,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]column{
						{title: "Scope"},
						{title: "Current Stage"},
						{title: "Stages", numeric: true},
						{title: "Processed"},
						{title: "Updated"},
					},
					rows,
				))
			}

			stats, err := checkpoints.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				return nil
			}
			keys := make([]string, 0, len(stats))
			for key := range stats {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				rows = append(rows, []string{key, fmt.Sprintf("%d", stats[key])})
			}
			fmt.Fprintln(stdout, renderTable(
				[]column{{title: "Statistic"}, {title: "Value", numeric: true}},
				rows,
			))
			return nil
		},
	}
}
