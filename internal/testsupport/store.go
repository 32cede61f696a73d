package testsupport

import (
	"context"
	"testing"

	"gardenlog/internal/config"
	"gardenlog/internal/logging"
	"gardenlog/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewWorkJob inserts a queued work job for tests using the provided store.
func NewWorkJob(t testing.TB, store *queue.Store, owner string, payload queue.WorkPayload) *queue.Job {
	t.Helper()

	raw, err := queue.EncodePayload(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	job := &queue.Job{
		ID:           queue.NewJobID(),
		OwnerAddress: owner,
		Kind:         queue.KindWork,
		Payload:      raw,
		ClientWorkID: queue.NewClientWorkID(),
	}
	if err := store.Put(context.Background(), job); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return job
}

// NopLogger returns a logger that discards all records.
var NopLogger = logging.NewNop
