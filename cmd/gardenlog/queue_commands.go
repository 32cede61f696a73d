package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gardenlog/internal/agent"
	"gardenlog/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the local work queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var onlyPending bool
	var onlySynced bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if onlyPending && onlySynced {
				return errors.New("specify only one of --pending or --synced")
			}
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				filter := queue.Filter{}
				if onlyPending {
					filter.Synced = queue.SyncedFilter(false)
				}
				if onlySynced {
					filter.Synced = queue.SyncedFilter(true)
				}

				jobs, err := stack.Manager.Jobs(cmd.Context(), stack.Config.Owner, filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeQueueListJSON(cmd, jobs, stack.Manager.RetryCap())
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					title := ""
					if payload, err := job.WorkPayload(); err == nil {
						title = payload.Title
					}
					rows = append(rows, []string{
						shortID(job.ID),
						title,
						jobState(job, stack.Manager.RetryCap()),
						strconv.Itoa(job.Attempts),
						job.CreatedAt.Local().Format(time.DateTime),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "State", "Attempts", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&onlyPending, "pending", false, "Show only jobs awaiting submission")
	cmd.Flags().BoolVar(&onlySynced, "synced", false, "Show only jobs awaiting remote confirmation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				stats, err := stack.Manager.Stats(cmd.Context(), stack.Config.Owner)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeQueueStatsJSON(cmd, stats)
				}
				table := renderKeyValues([][2]string{
					{"Total", strconv.Itoa(stats.Total)},
					{"Pending", strconv.Itoa(stats.Pending)},
					{"Failed", strconv.Itoa(stats.Failed)},
					{"Synced", strconv.Itoa(stats.Synced)},
				})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Reset failed jobs for another flush attempt",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				count, err := stack.Manager.Retry(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d jobs for retry\n", count)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <jobID>",
		Short: "Delete a queued job and its media references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				if err := stack.Manager.DeleteJob(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearSynced bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				var removed int64
				var err error
				if clearSynced {
					removed, err = stack.Store.ClearSynced(cmd.Context())
				} else {
					removed, err = stack.Store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearSynced, "synced", false, "Remove only jobs already confirmed remotely")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the queue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				health, err := stack.Store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s\n", health.DBPath)
				fmt.Fprintf(out, "Exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Integrity: %s\n", yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "Jobs: %d\n", health.TotalJobs)
				if health.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", health.Error)
				}
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func jobState(job *queue.Job, retryCap int) string {
	switch {
	case job.Synced:
		return "synced"
	case job.LastError != "" && job.Attempts >= retryCap:
		return "failed"
	case job.LastError != "":
		return "retrying"
	default:
		return "pending"
	}
}
