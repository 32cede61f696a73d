package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"gardenlog/internal/agent"
	"gardenlog/internal/syncer"
)

func newFlushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Submit queued jobs to the attestation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				summary, err := stack.Engine.Flush(cmd.Context())
				if err != nil {
					return err
				}
				printFlushSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}

func printFlushSummary(out io.Writer, summary syncer.Summary) {
	fmt.Fprintf(out, "Flush finished in %s: %d submitted, %d failed, %d skipped\n",
		summary.Duration.Round(time.Millisecond),
		summary.Submitted,
		summary.Failed,
		summary.Skipped,
	)
}
