package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gardenlog/internal/agent"
	"gardenlog/internal/config"
	"gardenlog/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var gardenAddress string
	var actionUID int64
	var title string
	var feedback string
	var plantCount int
	var plantSelection []string
	var mediaPaths []string
	var flushNow bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record completed work in the local queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *agent.Stack, logger *slog.Logger) error {
				media, err := collectMedia(mediaPaths)
				if err != nil {
					return err
				}

				payload := queue.WorkPayload{
					ActionUID:      actionUID,
					GardenAddress:  gardenAddress,
					Title:          title,
					Feedback:       feedback,
					PlantCount:     plantCount,
					PlantSelection: plantSelection,
				}
				job, err := stack.Manager.AddJob(cmd.Context(), stack.Config.Owner, queue.KindWork, payload, media, nil)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued job %s (client work id %s)\n", job.ID, job.ClientWorkID)

				if flushNow {
					summary, err := stack.Engine.Flush(cmd.Context())
					if err != nil {
						return err
					}
					printFlushSummary(out, summary)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&gardenAddress, "garden", "g", "", "Garden address the work belongs to")
	cmd.Flags().Int64VarP(&actionUID, "action", "a", 0, "Action identifier for the work performed")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Short title for the work")
	cmd.Flags().StringVar(&feedback, "feedback", "", "Free-form notes about the work")
	cmd.Flags().IntVar(&plantCount, "plants", 0, "Number of plants involved")
	cmd.Flags().StringSliceVar(&plantSelection, "selection", nil, "Plant identifier to include (repeatable)")
	cmd.Flags().StringSliceVarP(&mediaPaths, "media", "m", nil, "Media file to attach (repeatable)")
	cmd.Flags().BoolVar(&flushNow, "flush", false, "Attempt an immediate flush after queueing")
	cobra.CheckErr(cmd.MarkFlagRequired("garden"))
	cobra.CheckErr(cmd.MarkFlagRequired("action"))

	return cmd
}

func collectMedia(paths []string) ([]queue.MediaRef, error) {
	refs := make([]queue.MediaRef, 0, len(paths))
	for _, raw := range paths {
		path, err := config.ExpandPath(raw)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("inspect media %q: %w", raw, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("media %q is a directory", raw)
		}
		refs = append(refs, queue.MediaRef{
			BlobHandle: path,
			SizeBytes:  info.Size(),
		})
	}
	return refs, nil
}
