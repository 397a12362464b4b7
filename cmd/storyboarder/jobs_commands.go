package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyboarder/internal/api"
	"storyboarder/internal/jobs"
	"storyboarder/internal/storyboard"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect recorded storyboard jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlags(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				list, err := store.List(cmd.Context(), jobs.ListOptions{Statuses: statuses, Limit: limit})
				if err != nil {
					return err
				}
				dtos := api.FromJobs(list)
				if jsonOutput {
					return writeJSON(cmd, dtos)
				}
				if len(dtos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(dtos))
				for _, job := range dtos {
					rows = append(rows, []string{
						job.ID,
						job.Status,
						job.Source,
						strconv.Itoa(job.Attempts),
						job.AnimationStyle,
						job.CreatedAt,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{left("ID"), left("Status"), left("Source"), right("Attempts"), wrapped("Style", 30), left("Created")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum jobs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job and its storyboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				job, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				dto := api.FromJob(job, true)
				if jsonOutput {
					return writeJSON(cmd, dto)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:           %s\n", dto.ID)
				fmt.Fprintf(out, "Status:       %s\n", dto.Status)
				fmt.Fprintf(out, "Source:       %s\n", dto.Source)
				fmt.Fprintf(out, "Style:        %s\n", dto.AnimationStyle)
				fmt.Fprintf(out, "Setting:      %s\n", dto.Setting)
				fmt.Fprintf(out, "Focal points: %s\n", strings.Join(dto.FocalPoints, ", "))
				fmt.Fprintf(out, "Attempts:     %d\n", dto.Attempts)
				fmt.Fprintf(out, "Created:      %s\n", dto.CreatedAt)
				fmt.Fprintf(out, "Updated:      %s\n", dto.UpdatedAt)
				if dto.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:        %s\n", dto.ErrorMessage)
				}
				if len(dto.Storyboard) == 0 {
					return nil
				}
				var result storyboard.Result
				if err := json.Unmarshal(dto.Storyboard, &result); err != nil {
					return fmt.Errorf("decode stored storyboard: %w", err)
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderStoryboard(&result))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(jobs.Statuses()))
				for _, status := range jobs.Statuses() {
					rows = append(rows, []string{string(status), strconv.Itoa(stats[status])})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{left("Status"), right("Count")}, rows))
				return nil
			})
		},
	}
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete job records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				out := cmd.OutOrStdout()
				for _, raw := range args {
					id := strings.TrimSpace(raw)
					job, err := store.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					if job == nil {
						fmt.Fprintf(out, "Job %s not found\n", id)
						continue
					}
					if !job.Status.Terminal() {
						return fmt.Errorf("job %s is %s: %w", id, job.Status, api.ErrJobActive)
					}
					if _, err := store.Remove(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed job %s\n", id)
				}
				return nil
			})
		},
	}
}

func parseStatusFlags(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			names := make([]string, 0, len(jobs.Statuses()))
			for _, s := range jobs.Statuses() {
				names = append(names, string(s))
			}
			return nil, fmt.Errorf("unknown status %q (valid: %s)", value, strings.Join(names, ", "))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
