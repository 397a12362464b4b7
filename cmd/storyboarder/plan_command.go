package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"storyboarder/internal/storyboard"
	"storyboarder/internal/transcript"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "plan <transcript>",
		Short:       "Show the clip boundaries of a transcript without calling a model",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadTranscript(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			normalized, plan := storyboard.Plan(rows)
			if jsonOutput {
				return writeJSON(cmd, map[string]any{"seconds": len(normalized), "clips": plan})
			}
			if len(plan) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Transcript is empty")
				return nil
			}
			table := make([][]string, 0, len(plan))
			for i, entry := range plan {
				table = append(table, []string{
					strconv.Itoa(i + 1),
					transcript.FormatTimestamp(entry.Start),
					transcript.FormatTimestamp(entry.End),
					strconv.Itoa(entry.Duration()),
					entry.Verbatim,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]column{right("#"), left("Start"), left("End"), right("Seconds"), wrapped("Verbatim", 60)},
				table,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
