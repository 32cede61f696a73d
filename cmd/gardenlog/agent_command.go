package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gardenlog/internal/agent"
)

func newAgentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the background sync agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, logger *slog.Logger) error {
				runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()

				a, err := agent.New(stack.Config, stack.Store, stack.Engine, logger)
				if err != nil {
					return err
				}
				if err := a.Start(runCtx); err != nil {
					return err
				}
				defer a.Stop()

				fmt.Fprintln(cmd.OutOrStdout(), "Agent running; press Ctrl-C to stop")
				<-runCtx.Done()
				return nil
			})
		},
	}
}
