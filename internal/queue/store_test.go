package queue_test

import (
	"context"
	"errors"
	"testing"

	"gardenlog/internal/queue"
	"gardenlog/internal/testsupport"
)

func TestStorePutAndGetRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{
		ActionUID:     7,
		GardenAddress: "0xgarden",
		Title:         "Weeding bed 3",
	})

	fetched, err := store.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected job, got nil")
	}
	if fetched.OwnerAddress != "0xalice" {
		t.Errorf("owner mismatch: got %q", fetched.OwnerAddress)
	}
	if fetched.ClientWorkID != job.ClientWorkID {
		t.Errorf("client work id mismatch: got %q, want %q", fetched.ClientWorkID, job.ClientWorkID)
	}
	if fetched.Synced {
		t.Error("new job should not be synced")
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Error("timestamps should be stamped on insert")
	}

	payload, err := fetched.WorkPayload()
	if err != nil {
		t.Fatalf("WorkPayload: %v", err)
	}
	if payload.Title != "Weeding bed 3" || payload.ActionUID != 7 {
		t.Errorf("payload mismatch: %+v", payload)
	}
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.Get(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %+v", job)
	}
}

func TestStoreFindByClientWorkID(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})

	found, err := store.FindByClientWorkID(context.Background(), job.ClientWorkID)
	if err != nil {
		t.Fatalf("FindByClientWorkID: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("expected job %s, got %+v", job.ID, found)
	}

	missing, err := store.FindByClientWorkID(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("FindByClientWorkID missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown correlation id, got %+v", missing)
	}
}

func TestStoreListFiltersByOwnerAndSynced(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	alice := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	testsupport.NewWorkJob(t, store, "0xbob", queue.WorkPayload{ActionUID: 2, GardenAddress: "0xg"})

	if err := store.MarkSynced(ctx, alice.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	aliceJobs, err := store.List(ctx, queue.Filter{Owner: "0xalice"})
	if err != nil {
		t.Fatalf("List by owner: %v", err)
	}
	if len(aliceJobs) != 1 || aliceJobs[0].ID != alice.ID {
		t.Fatalf("expected only alice's job, got %d jobs", len(aliceJobs))
	}

	synced, err := store.List(ctx, queue.Filter{Synced: queue.SyncedFilter(true)})
	if err != nil {
		t.Fatalf("List synced: %v", err)
	}
	if len(synced) != 1 || synced[0].ID != alice.ID {
		t.Fatalf("expected one synced job, got %d", len(synced))
	}

	unsynced, err := store.Unsynced(ctx)
	if err != nil {
		t.Fatalf("Unsynced: %v", err)
	}
	if len(unsynced) != 1 || unsynced[0].OwnerAddress != "0xbob" {
		t.Fatalf("expected bob's job unsynced, got %d jobs", len(unsynced))
	}
}

func TestStoreListOrdersOldestFirst(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	second := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 2, GardenAddress: "0xg"})

	jobs, err := store.List(context.Background(), queue.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Error("jobs should drain oldest first")
	}
}

func TestStoreRecordFailureIncrementsAttempts(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})

	for i := 1; i <= 3; i++ {
		if err := store.RecordFailure(ctx, job.ID, "network unreachable"); err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		updated, err := store.Get(ctx, job.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if updated.Attempts != i {
			t.Fatalf("attempts should be %d, got %d", i, updated.Attempts)
		}
		if updated.LastError != "network unreachable" {
			t.Fatalf("last error mismatch: %q", updated.LastError)
		}
	}
}

func TestStoreMarkSyncedClearsError(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	if err := store.RecordFailure(ctx, job.ID, "timeout"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := store.MarkSynced(ctx, job.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	updated, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !updated.Synced {
		t.Error("job should be synced")
	}
	if updated.LastError != "" {
		t.Errorf("last error should be cleared, got %q", updated.LastError)
	}
}

func TestStoreResetRetryOnlyTouchesUnsynced(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	failed := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	synced := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 2, GardenAddress: "0xg"})

	if err := store.RecordFailure(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := store.MarkSynced(ctx, synced.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	count, err := store.ResetRetry(ctx)
	if err != nil {
		t.Fatalf("ResetRetry: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reset, got %d", count)
	}

	updated, err := store.Get(ctx, failed.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Attempts != 0 || updated.LastError != "" {
		t.Errorf("retry bookkeeping should be cleared, got attempts=%d error=%q", updated.Attempts, updated.LastError)
	}
}

func TestStoreReplacePayloadResetsSubmissionState(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg", Title: "old"})
	if err := store.MarkSynced(ctx, job.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	raw, err := queue.EncodePayload(queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg", Title: "new"})
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	if err := store.ReplacePayload(ctx, job.ID, raw); err != nil {
		t.Fatalf("ReplacePayload: %v", err)
	}

	updated, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Synced {
		t.Error("rewritten job should flush again")
	}
	payload, err := updated.WorkPayload()
	if err != nil {
		t.Fatalf("WorkPayload: %v", err)
	}
	if payload.Title != "new" {
		t.Errorf("payload should be replaced, got title %q", payload.Title)
	}
}

func TestStoreDeleteCascadesMediaRefs(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	if err := store.AddMediaRefs(ctx, queue.MediaRef{
		ID:         queue.NewJobID(),
		JobID:      job.ID,
		BlobHandle: "/tmp/photo.jpg",
		SizeBytes:  1024,
	}); err != nil {
		t.Fatalf("AddMediaRefs: %v", err)
	}

	removed, err := store.Delete(ctx, job.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected job to be removed")
	}

	refs, err := store.MediaRefsByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("MediaRefsByJob: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("media refs should cascade on delete, got %d", len(refs))
	}
}

func TestStoreStats(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pending := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	_ = pending
	syncedJob := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 2, GardenAddress: "0xg"})
	failedJob := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 3, GardenAddress: "0xg"})
	testsupport.NewWorkJob(t, store, "0xbob", queue.WorkPayload{ActionUID: 4, GardenAddress: "0xg"})

	if err := store.MarkSynced(ctx, syncedJob.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	retryCap := 2
	for i := 0; i < retryCap; i++ {
		if err := store.RecordFailure(ctx, failedJob.ID, "boom"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	stats, err := store.Stats(ctx, "0xalice", retryCap)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total: got %d, want 3", stats.Total)
	}
	if stats.Pending != 1 {
		t.Errorf("pending: got %d, want 1", stats.Pending)
	}
	if stats.Failed != 1 {
		t.Errorf("failed: got %d, want 1", stats.Failed)
	}
	if stats.Synced != 1 {
		t.Errorf("synced: got %d, want 1", stats.Synced)
	}
}

func TestStoreDuplicateClientWorkIDRejected(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})

	raw, err := queue.EncodePayload(queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	dup := &queue.Job{
		ID:           queue.NewJobID(),
		OwnerAddress: "0xalice",
		Kind:         queue.KindWork,
		Payload:      raw,
		ClientWorkID: job.ClientWorkID,
	}
	if err := store.Put(ctx, dup); err == nil {
		t.Fatal("duplicate client work id should be rejected")
	} else if !errors.Is(err, queue.ErrStoreCorrupted) {
		t.Fatalf("expected store error wrapper, got %v", err)
	}
}

func TestStoreClearSynced(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	kept := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 1, GardenAddress: "0xg"})
	confirmed := testsupport.NewWorkJob(t, store, "0xalice", queue.WorkPayload{ActionUID: 2, GardenAddress: "0xg"})
	if err := store.MarkSynced(ctx, confirmed.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	removed, err := store.ClearSynced(ctx)
	if err != nil {
		t.Fatalf("ClearSynced: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	remaining, err := store.List(ctx, queue.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != kept.ID {
		t.Fatalf("expected only the unsynced job to remain, got %d", len(remaining))
	}
}
