package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"gardenlog/internal/agent"
	"gardenlog/internal/work"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Show the merged work record view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, _ *slog.Logger) error {
				view := newWorkView(ctx, stack)
				defer view.Close()

				var records []work.Record
				var err error
				switch source {
				case "merged", "":
					records, err = view.Records(cmd.Context())
				case "online":
					records, err = view.Online(cmd.Context())
				case "offline":
					records, err = view.Offline(cmd.Context())
				default:
					return fmt.Errorf("unknown source %q (expected merged, online, or offline)", source)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No work records")
					return nil
				}

				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					title := record.Metadata["title"]
					rows = append(rows, []string{
						shortID(record.ID),
						title,
						renderStatus(record.Status, colorize),
						string(record.Source),
						record.GardenAddress,
						strconv.FormatInt(record.ActionUID, 10),
						record.CreatedAt.Local().Format(time.DateTime),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Source", "Garden", "Action", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "merged", "View to show: merged, online, or offline")
	return cmd
}

func newWorkView(ctx *commandContext, stack *agent.Stack) *work.View {
	var remoteSide work.Remote
	if client := ctx.remoteClient(stack.Config); client != nil {
		remoteSide = client
	}
	return work.NewView(stack.Manager, remoteSide, stack.Bus, stack.Config.Owner, work.ViewOptions{
		DedupWindow:   time.Duration(stack.Config.Merge.DedupWindowSeconds) * time.Second,
		OptimisticTTL: time.Duration(stack.Config.Merge.OptimisticTTLSeconds) * time.Second,
	})
}

const (
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
)

func renderStatus(status work.Status, colorize bool) string {
	if !colorize {
		return string(status)
	}
	switch status {
	case work.StatusApproved:
		return ansiGreen + string(status) + ansiReset
	case work.StatusRejected, work.StatusFailed:
		return ansiRed + string(status) + ansiReset
	case work.StatusSyncing:
		return ansiYellow + string(status) + ansiReset
	default:
		return string(status)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
