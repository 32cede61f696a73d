package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"gardenlog/internal/queue"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeQueueListJSON(cmd *cobra.Command, jobs []*queue.Job, retryCap int) error {
	type jsonJob struct {
		ID        string `json:"id"`
		Title     string `json:"title,omitempty"`
		State     string `json:"state"`
		Attempts  int    `json:"attempts"`
		LastError string `json:"last_error,omitempty"`
		CreatedAt string `json:"created_at"`
	}
	items := make([]jsonJob, 0, len(jobs))
	for _, job := range jobs {
		title := ""
		if payload, err := job.WorkPayload(); err == nil {
			title = payload.Title
		}
		items = append(items, jsonJob{
			ID:        job.ID,
			Title:     title,
			State:     jobState(job, retryCap),
			Attempts:  job.Attempts,
			LastError: job.LastError,
			CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeJSON(cmd, map[string]any{"jobs": items})
}

func writeQueueStatsJSON(cmd *cobra.Command, stats queue.Stats) error {
	return writeJSON(cmd, map[string]any{
		"total":   stats.Total,
		"pending": stats.Pending,
		"failed":  stats.Failed,
		"synced":  stats.Synced,
	})
}
