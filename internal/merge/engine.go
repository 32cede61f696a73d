package merge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State names the reconciliation phase of an Engine.
type State string

const (
	// StateLoadingSources holds until both sources have completed at least
	// one fetch. Merging earlier would treat "not yet loaded" as
	// "definitively empty" and make valid remote records flicker away.
	StateLoadingSources State = "loading_sources"
	// StateMerging means a re-merge is pending or in progress.
	StateMerging State = "merging"
	// StateSettled means the cached merged view reflects both sources.
	StateSettled State = "settled"
)

// Engine combines an online and an offline source into one derived view.
// The three queries (online, offline, merged) cache independently; the
// merged view is recomputed only when a source refreshes or an external
// trigger fires, never by polling. The merged result is derived state and
// is never persisted.
type Engine[O, F, M any] struct {
	fetchOnline  func(ctx context.Context) (O, error)
	fetchOffline func(ctx context.Context) (F, error)
	mergeFn      func(online O, offline F) (M, error)

	mu      sync.Mutex
	online  sourceState[O]
	offline sourceState[F]
	merged  M
	settled bool
	pending bool
}

type sourceState[T any] struct {
	value     T
	loaded    bool
	stale     bool
	updatedAt time.Time
}

// NewEngine constructs a merge engine over the two fetchers and the merge
// function. All three are required.
func NewEngine[O, F, M any](
	fetchOnline func(ctx context.Context) (O, error),
	fetchOffline func(ctx context.Context) (F, error),
	mergeFn func(online O, offline F) (M, error),
) *Engine[O, F, M] {
	return &Engine[O, F, M]{
		fetchOnline:  fetchOnline,
		fetchOffline: fetchOffline,
		mergeFn:      mergeFn,
	}
}

// State reports the current reconciliation phase.
func (e *Engine[O, F, M]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine[O, F, M]) stateLocked() State {
	if !e.online.loaded || !e.offline.loaded {
		return StateLoadingSources
	}
	if e.pending || !e.settled {
		return StateMerging
	}
	return StateSettled
}

// Online returns the cached online snapshot, fetching when missing or stale.
func (e *Engine[O, F, M]) Online(ctx context.Context) (O, error) {
	e.mu.Lock()
	if e.online.loaded && !e.online.stale {
		value := e.online.value
		e.mu.Unlock()
		return value, nil
	}
	e.mu.Unlock()
	return e.refreshOnline(ctx)
}

// Offline returns the cached offline snapshot, fetching when missing or stale.
func (e *Engine[O, F, M]) Offline(ctx context.Context) (F, error) {
	e.mu.Lock()
	if e.offline.loaded && !e.offline.stale {
		value := e.offline.value
		e.mu.Unlock()
		return value, nil
	}
	e.mu.Unlock()
	return e.refreshOffline(ctx)
}

func (e *Engine[O, F, M]) refreshOnline(ctx context.Context) (O, error) {
	value, err := e.fetchOnline(ctx)
	if err != nil {
		var zero O
		return zero, fmt.Errorf("online fetch: %w", err)
	}
	e.mu.Lock()
	e.online.value = value
	e.online.loaded = true
	e.online.stale = false
	e.online.updatedAt = time.Now()
	e.pending = true
	e.mu.Unlock()
	return value, nil
}

func (e *Engine[O, F, M]) refreshOffline(ctx context.Context) (F, error) {
	value, err := e.fetchOffline(ctx)
	if err != nil {
		var zero F
		return zero, fmt.Errorf("offline fetch: %w", err)
	}
	e.mu.Lock()
	e.offline.value = value
	e.offline.loaded = true
	e.offline.stale = false
	e.offline.updatedAt = time.Now()
	e.pending = true
	e.mu.Unlock()
	return value, nil
}

// InvalidateOnline marks the online snapshot stale; the next query refetches.
func (e *Engine[O, F, M]) InvalidateOnline() {
	e.mu.Lock()
	e.online.stale = true
	e.pending = true
	e.mu.Unlock()
}

// InvalidateOffline marks the offline snapshot stale; the next query refetches.
func (e *Engine[O, F, M]) InvalidateOffline() {
	e.mu.Lock()
	e.offline.stale = true
	e.pending = true
	e.mu.Unlock()
}

// Trigger queues a re-merge without invalidating either source, used when an
// external event (a queue lifecycle event) may have changed derived status.
// Triggers coalesce: any number of them cost one re-merge.
func (e *Engine[O, F, M]) Trigger() {
	e.mu.Lock()
	e.pending = true
	e.mu.Unlock()
}

// Merged returns the deduplicated combined view. Both sources are loaded
// first, so the merge function never sees a source that has not completed
// loading. The cached result is reused until a source refresh or Trigger
// queues a re-merge.
func (e *Engine[O, F, M]) Merged(ctx context.Context) (M, error) {
	var zero M

	e.mu.Lock()
	needOnline := !e.online.loaded || e.online.stale
	needOffline := !e.offline.loaded || e.offline.stale
	e.mu.Unlock()

	if needOnline {
		if _, err := e.refreshOnline(ctx); err != nil {
			return zero, err
		}
	}
	if needOffline {
		if _, err := e.refreshOffline(ctx); err != nil {
			return zero, err
		}
	}

	e.mu.Lock()
	if e.settled && !e.pending {
		merged := e.merged
		e.mu.Unlock()
		return merged, nil
	}
	online := e.online.value
	offline := e.offline.value
	e.mu.Unlock()

	merged, err := e.mergeFn(online, offline)
	if err != nil {
		return zero, fmt.Errorf("merge: %w", err)
	}

	e.mu.Lock()
	e.merged = merged
	e.settled = true
	e.pending = false
	e.mu.Unlock()
	return merged, nil
}

// OnlineUpdatedAt reports when the online source last refreshed.
func (e *Engine[O, F, M]) OnlineUpdatedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online.updatedAt
}

// OfflineUpdatedAt reports when the offline source last refreshed.
func (e *Engine[O, F, M]) OfflineUpdatedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offline.updatedAt
}
