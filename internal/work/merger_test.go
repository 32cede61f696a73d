package work

import (
	"testing"
	"time"
)

func onlineRecord(id, clientWorkID string, actionUID int64, createdAt time.Time) Record {
	return Record{
		ID:            id,
		Status:        StatusPending,
		CreatedAt:     createdAt,
		OwnerAddress:  "0xalice",
		GardenAddress: "0xgarden",
		ActionUID:     actionUID,
		ClientWorkID:  clientWorkID,
		Source:        SourceOnline,
	}
}

func offlineRecord(id, clientWorkID string, actionUID int64, createdAt time.Time) Record {
	record := onlineRecord(id, clientWorkID, actionUID, createdAt)
	record.Source = SourceOffline
	return record
}

func TestMergeDropsClientWorkIDDuplicates(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	merger := NewMerger(5*time.Minute, 0)

	online := []Record{onlineRecord("remote-1", "cw-1", 7, base)}
	offline := []Record{offlineRecord("local-1", "cw-1", 7, base.Add(-time.Hour))}

	merged, err := merger.Merge(online, offline)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 record, got %d", len(merged))
	}
	if merged[0].Source != SourceOnline {
		t.Error("the online copy is authoritative and must win")
	}
}

func TestMergeHeuristicWindowBoundary(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	cases := []struct {
		name  string
		delta time.Duration
		dup   bool
	}{
		{"just inside window", window - time.Second, true},
		{"just outside window", window + time.Second, false},
		{"exactly at window", window, false},
		{"same instant", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merger := NewMerger(window, 0)
			online := []Record{onlineRecord("remote-1", "", 7, base)}
			offline := []Record{offlineRecord("local-1", "cw-other", 7, base.Add(tc.delta))}

			merged, err := merger.Merge(online, offline)
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			want := 2
			if tc.dup {
				want = 1
			}
			if len(merged) != want {
				t.Fatalf("delta %s: expected %d records, got %d", tc.delta, want, len(merged))
			}
		})
	}
}

func TestMergeHeuristicRequiresSameAction(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	merger := NewMerger(5*time.Minute, 0)

	online := []Record{onlineRecord("remote-1", "", 7, base)}
	offline := []Record{offlineRecord("local-1", "", 8, base)}

	merged, err := merger.Merge(online, offline)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("different actions at the same time are distinct work, got %d records", len(merged))
	}
}

func TestMergeSortsNewestFirstWithStableTieBreak(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	merger := NewMerger(time.Minute, 0)

	online := []Record{
		onlineRecord("bravo", "cw-1", 1, base),
		onlineRecord("alpha", "cw-2", 2, base),
		onlineRecord("zulu", "cw-3", 3, base.Add(time.Hour)),
	}

	merged, err := merger.Merge(online, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	got := []string{merged[0].ID, merged[1].ID, merged[2].ID}
	want := []string{"zulu", "alpha", "bravo"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	merger := NewMerger(5*time.Minute, 0)

	online := []Record{
		onlineRecord("remote-1", "cw-1", 1, base),
		onlineRecord("remote-2", "cw-2", 2, base.Add(time.Minute)),
	}
	offline := []Record{
		offlineRecord("local-1", "cw-1", 1, base),
		offlineRecord("local-2", "cw-9", 9, base.Add(2*time.Hour)),
	}

	first, err := merger.Merge(online, offline)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	second, err := merger.Merge(online, offline)
	if err != nil {
		t.Fatalf("Merge again: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Status != second[i].Status {
			t.Fatalf("position %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestOptimisticStatusSurvivesRemergeUntilTTL(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	merger := NewMerger(time.Minute, 10*time.Minute)

	current := base
	merger.now = func() time.Time { return current }

	online := []Record{onlineRecord("remote-1", "cw-1", 1, base)}

	merger.SetOptimisticStatus("remote-1", StatusApproved)

	merged, err := merger.Merge(online, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged[0].Status != StatusApproved {
		t.Fatalf("override should apply, got %s", merged[0].Status)
	}

	// Still inside the TTL on a later re-merge.
	current = base.Add(5 * time.Minute)
	merged, err = merger.Merge(online, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged[0].Status != StatusApproved {
		t.Fatalf("override should survive re-merge inside TTL, got %s", merged[0].Status)
	}

	// Past the TTL the authoritative status wins again.
	current = base.Add(11 * time.Minute)
	merged, err = merger.Merge(online, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged[0].Status != StatusPending {
		t.Fatalf("expired override must not apply, got %s", merged[0].Status)
	}
}

func TestClearOptimisticStatus(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	merger := NewMerger(time.Minute, 0)

	online := []Record{onlineRecord("remote-1", "cw-1", 1, base)}
	merger.SetOptimisticStatus("remote-1", StatusApproved)
	merger.ClearOptimisticStatus("remote-1")

	merged, err := merger.Merge(online, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged[0].Status != StatusPending {
		t.Fatalf("cleared override must not apply, got %s", merged[0].Status)
	}
}
