package merge_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"gardenlog/internal/merge"
)

type countingSource struct {
	calls atomic.Int64
	value []string
	err   error
}

func (s *countingSource) fetch(ctx context.Context) ([]string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.value, nil
}

func concat(online, offline []string) ([]string, error) {
	return append(append([]string{}, online...), offline...), nil
}

func TestEngineStartsInLoadingSources(t *testing.T) {
	t.Parallel()

	online := &countingSource{value: []string{"a"}}
	offline := &countingSource{value: []string{"b"}}
	engine := merge.NewEngine(online.fetch, offline.fetch, concat)

	if state := engine.State(); state != merge.StateLoadingSources {
		t.Fatalf("fresh engine should be loading sources, got %s", state)
	}
}

func TestEngineMergedLoadsBothSourcesFirst(t *testing.T) {
	t.Parallel()

	online := &countingSource{value: []string{"a"}}
	offline := &countingSource{value: []string{"b"}}
	engine := merge.NewEngine(online.fetch, offline.fetch, concat)

	merged, err := engine.Merged(context.Background())
	if err != nil {
		t.Fatalf("Merged: %v", err)
	}
	if len(merged) != 2 || merged[0] != "a" || merged[1] != "b" {
		t.Fatalf("unexpected merge result: %v", merged)
	}
	if online.calls.Load() != 1 || offline.calls.Load() != 1 {
		t.Fatalf("both sources must load exactly once, got %d/%d", online.calls.Load(), offline.calls.Load())
	}
	if state := engine.State(); state != merge.StateSettled {
		t.Fatalf("engine should settle after a merge, got %s", state)
	}
}

func TestEngineMergedCachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	online := &countingSource{value: []string{"a"}}
	offline := &countingSource{value: []string{"b"}}
	engine := merge.NewEngine(online.fetch, offline.fetch, concat)
	ctx := context.Background()

	if _, err := engine.Merged(ctx); err != nil {
		t.Fatalf("Merged: %v", err)
	}
	if _, err := engine.Merged(ctx); err != nil {
		t.Fatalf("Merged cached: %v", err)
	}
	if online.calls.Load() != 1 || offline.calls.Load() != 1 {
		t.Fatal("settled merge must not refetch sources")
	}

	offline.value = []string{"b", "c"}
	engine.InvalidateOffline()
	if state := engine.State(); state != merge.StateMerging {
		t.Fatalf("invalidation should queue a re-merge, got %s", state)
	}

	merged, err := engine.Merged(ctx)
	if err != nil {
		t.Fatalf("Merged after invalidation: %v", err)
	}
	if len(merged) != 3 {
		t.Fatalf("re-merge should see refreshed source: %v", merged)
	}
	if online.calls.Load() != 1 {
		t.Fatal("online source was not invalidated and must not refetch")
	}
	if offline.calls.Load() != 2 {
		t.Fatalf("offline source should refetch once, got %d", offline.calls.Load())
	}
}

func TestEngineTriggerForcesRemergeWithoutRefetch(t *testing.T) {
	t.Parallel()

	mergeCalls := 0
	online := &countingSource{value: []string{"a"}}
	offline := &countingSource{value: []string{"b"}}
	engine := merge.NewEngine(online.fetch, offline.fetch, func(o, f []string) ([]string, error) {
		mergeCalls++
		return concat(o, f)
	})
	ctx := context.Background()

	if _, err := engine.Merged(ctx); err != nil {
		t.Fatalf("Merged: %v", err)
	}

	// Triggers coalesce: three of them cost one re-merge.
	engine.Trigger()
	engine.Trigger()
	engine.Trigger()

	if _, err := engine.Merged(ctx); err != nil {
		t.Fatalf("Merged after trigger: %v", err)
	}
	if mergeCalls != 2 {
		t.Fatalf("expected 2 merge calls, got %d", mergeCalls)
	}
	if online.calls.Load() != 1 || offline.calls.Load() != 1 {
		t.Fatal("trigger must not refetch sources")
	}
}

func TestEngineMergedPropagatesFetchError(t *testing.T) {
	t.Parallel()

	online := &countingSource{err: errors.New("network down")}
	offline := &countingSource{value: []string{"b"}}
	engine := merge.NewEngine(online.fetch, offline.fetch, concat)

	if _, err := engine.Merged(context.Background()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	if state := engine.State(); state != merge.StateLoadingSources {
		t.Fatalf("engine must stay in loading state after a failed fetch, got %s", state)
	}

	// Recovery: the source comes back and the merge completes.
	online.err = nil
	online.value = []string{"a"}
	merged, err := engine.Merged(context.Background())
	if err != nil {
		t.Fatalf("Merged after recovery: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("unexpected merge result: %v", merged)
	}
}

func TestEngineSourceQueriesCacheIndependently(t *testing.T) {
	t.Parallel()

	online := &countingSource{value: []string{"a"}}
	offline := &countingSource{value: []string{"b"}}
	engine := merge.NewEngine(online.fetch, offline.fetch, concat)
	ctx := context.Background()

	if _, err := engine.Online(ctx); err != nil {
		t.Fatalf("Online: %v", err)
	}
	if _, err := engine.Online(ctx); err != nil {
		t.Fatalf("Online cached: %v", err)
	}
	if online.calls.Load() != 1 {
		t.Fatalf("online should fetch once, got %d", online.calls.Load())
	}
	if offline.calls.Load() != 0 {
		t.Fatal("querying one source must not load the other")
	}

	if state := engine.State(); state != merge.StateLoadingSources {
		t.Fatalf("engine still loading until both sources complete, got %s", state)
	}
}
