package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storyboarder/internal/services/providers"
)

const healthCheckTimeout = 30 * time.Second

func newLLMCommand(ctx *commandContext) *cobra.Command {
	llmCmd := &cobra.Command{
		Use:   "llm",
		Short: "Completion provider utilities",
	}
	llmCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check that the configured provider answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			provider, err := providers.Open(cmd.Context(), cfg)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("provider", statusError, err.Error(), colorize))
				return err
			}
			fmt.Fprintln(out, renderStatusLine("provider", statusInfo, provider.Name+" "+provider.Model, colorize))

			checkCtx, cancel := context.WithTimeout(cmd.Context(), healthCheckTimeout)
			defer cancel()
			start := time.Now()
			if err := provider.HealthCheck(checkCtx); err != nil {
				fmt.Fprintln(out, renderStatusLine("completion", statusError, err.Error(), colorize))
				return err
			}
			fmt.Fprintln(out, renderStatusLine("completion", statusOK, time.Since(start).Round(time.Millisecond).String(), colorize))
			return nil
		},
	})
	return llmCmd
}
