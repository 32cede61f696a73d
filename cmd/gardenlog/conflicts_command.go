package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"gardenlog/internal/agent"
	"gardenlog/internal/conflict"
)

func newConflictsCommand(ctx *commandContext) *cobra.Command {
	conflictsCmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect and resolve local/remote record conflicts",
	}

	conflictsCmd.AddCommand(newConflictsListCommand(ctx))
	conflictsCmd.AddCommand(newConflictsResolveCommand(ctx))

	return conflictsCmd
}

func newConflictsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List records that exist on both sides with diverging content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				conflicts, err := detectConflicts(cmd, ctx, stack)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(conflicts) == 0 {
					fmt.Fprintln(out, "No conflicts")
					return nil
				}

				rows := make([][]string, 0, len(conflicts))
				for _, c := range conflicts {
					types := make([]string, 0, len(c.Findings))
					for _, finding := range c.Findings {
						types = append(types, string(finding.Type))
					}
					rows = append(rows, []string{
						shortID(c.RecordID),
						strings.Join(types, ", "),
						yesNo(c.AutoResolvable()),
					})
				}
				table := renderTable(
					[]string{"Record", "Findings", "Auto-resolvable"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newConflictsResolveCommand(ctx *commandContext) *cobra.Command {
	var strategyFlag string

	cmd := &cobra.Command{
		Use:   "resolve <recordID>",
		Short: "Resolve a conflict with the chosen strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := conflict.ParseStrategy(strategyFlag)
			if err != nil {
				return err
			}
			return ctx.withStack(func(stack *agent.Stack, logger *slog.Logger) error {
				conflicts, err := detectConflicts(cmd, ctx, stack)
				if err != nil {
					return err
				}

				target := findConflict(conflicts, args[0])
				if target == nil {
					return fmt.Errorf("no conflict found for record %q", args[0])
				}

				resolver := conflict.NewResolver(stack.Manager, logger)
				if err := resolver.Resolve(cmd.Context(), target, strategy, nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s with %s\n", shortID(target.RecordID), strategy)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&strategyFlag, "strategy", "s", string(conflict.StrategyKeepRemote),
		"Resolution strategy: keep_local, keep_remote, or merge")
	return cmd
}

func detectConflicts(cmd *cobra.Command, ctx *commandContext, stack *agent.Stack) ([]*conflict.Conflict, error) {
	view := newWorkView(ctx, stack)
	defer view.Close()

	offline, err := view.Offline(cmd.Context())
	if err != nil {
		return nil, err
	}
	online, err := view.Online(cmd.Context())
	if err != nil {
		return nil, err
	}
	return conflict.Detect(offline, online), nil
}

func findConflict(conflicts []*conflict.Conflict, id string) *conflict.Conflict {
	for _, c := range conflicts {
		if c.RecordID == id || strings.HasPrefix(c.RecordID, id) {
			return c
		}
	}
	return nil
}
