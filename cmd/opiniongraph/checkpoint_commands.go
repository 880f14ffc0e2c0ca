package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Checkpoint utilities",
	}
	checkpointCmd.AddCommand(newCheckpointResetCommand(ctx))
	checkpointCmd.AddCommand(newCheckpointScopesCommand(ctx))
	return checkpointCmd
}

func newCheckpointResetCommand(ctx *commandContext) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear checkpoint state",
		Long: `Clear checkpoint state for one scope, or everything when no scope is
given. A full reset also drops the cached LLM responses, so the next run
pays for every call again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpoints, err := ctx.openCheckpoints()
			if err != nil {
				return err
			}
			defer checkpoints.Close()

			target := strings.TrimSpace(scope)
			if err := checkpoints.Reset(cmd.Context(), target); err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if target == "" {
				fmt.Fprintln(stdout, "Cleared all checkpoint state and cached LLM responses")
			} else {
				fmt.Fprintf(stdout, "Cleared checkpoint state for scope %s\n", target)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Scope to reset; empty clears everything")
	return cmd
}

func newCheckpointScopesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "List fully processed scopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			checkpoints, err := ctx.openCheckpoints()
			if err != nil {
				return err
			}
			defer checkpoints.Close()

			scopes, err := checkpoints.ProcessedScopes(cmd.Context())
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if len(scopes) == 0 {
				fmt.Fprintln(stdout, "No processed scopes")
				return nil
			}
			for _, scope := range scopes {
				fmt.Fprintln(stdout, scope)
			}
			return nil
		},
	}
}
