package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"opiniongraph/internal/opinion"
	"opiniongraph/internal/store"
	"opiniongraph/internal/textutil"
)

func newOpinionsCommand(ctx *commandContext) *cobra.Command {
	opinionsCmd := &cobra.Command{
		Use:   "opinions",
		Short: "Inspect the final opinion set",
	}
	opinionsCmd.AddCommand(newOpinionsListCommand(ctx))
	opinionsCmd.AddCommand(newOpinionsShowCommand(ctx))
	return opinionsCmd
}

func newOpinionsListCommand(ctx *commandContext) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored opinions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			opinions, err := store.NewOpinionStore(cfg.OpinionsPath()).Load()
			if err != nil {
				return err
			}

			filter := strings.TrimSpace(category)
			rows := make([][]string, 0, len(opinions))
			for _, op := range opinions {
				if filter != "" && !strings.EqualFold(op.CategoryID, filter) {
					continue
				}
				rows = append(rows, []string{
					op.ID,
					textutil.Excerpt(op.Title, 60),
					op.CategoryID,
					fmt.Sprintf("%d", len(op.Appearances)),
					fmt.Sprintf("%d", len(op.SpeakerIDs())),
					yesNo(op.IsContentious()),
				})
			}

			stdout := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No opinions stored")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(
				[]column{
					{title: "ID"},
					{title: "Title"},
					{title: "Category"},
					{title: "Episodes", numeric: true},
					{title: "Speakers", numeric: true},
					{title: "Contentious"},
				},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only show opinions in this category id")
	return cmd
}

func newOpinionsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one opinion in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			opinions, err := store.NewOpinionStore(cfg.OpinionsPath()).Load()
			if err != nil {
				return err
			}

			var found *opinion.Opinion
			for _, op := range opinions {
				if op.ID == args[0] {
					found = op
					break
				}
			}
			if found == nil {
				return fmt.Errorf("opinion %q not found", args[0])
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "ID:          %s\n", found.ID)
			fmt.Fprintf(stdout, "Title:       %s\n", found.Title)
			fmt.Fprintf(stdout, "Category:    %s\n", found.CategoryID)
			fmt.Fprintf(stdout, "Description: %s\n", found.Description)
			fmt.Fprintf(stdout, "Confidence:  %.2f\n", found.Confidence)
			fmt.Fprintf(stdout, "Contentious: %s\n", yesNo(found.IsContentious()))
			if len(found.Keywords) > 0 {
				fmt.Fprintf(stdout, "Keywords:    %s\n", strings.Join(found.Keywords, ", "))
			}
			if len(found.RelatedOpinions) > 0 {
				fmt.Fprintf(stdout, "Related:     %s\n", strings.Join(found.RelatedOpinions, ", "))
			}
			if found.IsContradiction {
				fmt.Fprintf(stdout, "Contradicts: %s\n", found.ContradictsOpinionID)
				if found.ContradictionNotes != "" {
					fmt.Fprintf(stdout, "             %s\n", found.ContradictionNotes)
				}
			}
			if found.EvolutionNotes != "" {
				fmt.Fprintf(stdout, "Evolution:   %s\n", found.EvolutionNotes)
			}

			fmt.Fprintln(stdout)
			rows := make([][]string, 0, len(found.Appearances))
			for _, app := range found.Appearances {
				speakers := make([]string, 0, len(app.Speakers))
				for _, s := range app.Speakers {
					speakers = append(speakers, fmt.Sprintf("%s (%s)", s.SpeakerName, s.Stance))
				}
				date := ""
				if !app.Date.IsZero() {
					date = app.Date.Format("2006-01-02")
				}
				rows = append(rows, []string{
					app.EpisodeID,
					textutil.Excerpt(app.EpisodeTitle, 40),
					date,
					strings.Join(speakers, ", "),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]column{{title: "Episode"}, {title: "Title"}, {title: "Date"}, {title: "Speakers"}},
				rows,
			))
			return nil
		},
	}
}

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List stored categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			categories, err := store.NewCategoryStore(cfg.CategoriesPath()).All()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if len(categories) == 0 {
				fmt.Fprintln(stdout, "No categories stored")
				return nil
			}
			rows := make([][]string, 0, len(categories))
			for _, category := range categories {
				rows = append(rows, []string{category.ID, category.Name, category.Description})
			}
			fmt.Fprintln(stdout, renderTable(
				[]column{{title: "ID"}, {title: "Name"}, {title: "Description"}},
				rows,
			))
			return nil
		},
	}
}
