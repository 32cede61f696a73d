package work

import (
	"context"
	"time"

	"gardenlog/internal/events"
	"gardenlog/internal/merge"
	"gardenlog/internal/queue"
)

// View is the three-query merge surface for one owner: the online snapshot,
// the offline snapshot, and the combined deduplicated view, kept fresh by
// queue lifecycle events instead of polling.
type View struct {
	owner       string
	engine      *merge.Engine[[]Record, []Record, []Record]
	merger      *Merger
	unsubscribe func()
}

// ViewOptions tunes merge behavior.
type ViewOptions struct {
	DedupWindow   time.Duration
	OptimisticTTL time.Duration
}

// NewView wires a merged work view over the queue manager and the remote
// boundary, subscribing to the bus so queue transitions invalidate the
// offline snapshot and queue a re-merge.
func NewView(manager *queue.Manager, remote Remote, bus *events.Bus, owner string, opts ViewOptions) *View {
	merger := NewMerger(opts.DedupWindow, opts.OptimisticTTL)

	fetchOnline := func(ctx context.Context) ([]Record, error) {
		if remote == nil {
			// Fully offline: the merged view degrades to the local queue.
			return nil, nil
		}
		remotes, err := remote.FetchRemoteRecords(ctx, owner)
		if err != nil {
			return nil, err
		}
		approvals, err := remote.FetchApprovals(ctx, owner)
		if err != nil {
			return nil, err
		}
		index := ApprovalIndex(approvals)
		records := make([]Record, 0, len(remotes))
		for _, remoteRecord := range remotes {
			records = append(records, FromRemote(remoteRecord, index))
		}
		return records, nil
	}

	fetchOffline := func(ctx context.Context) ([]Record, error) {
		jobs, err := manager.Jobs(ctx, owner, queue.Filter{Kind: queue.KindWork})
		if err != nil {
			return nil, err
		}
		records := make([]Record, 0, len(jobs))
		for _, job := range jobs {
			media, err := manager.MediaRefs(ctx, job.ID)
			if err != nil {
				return nil, err
			}
			record, err := FromJob(job, media, manager.RetryCap())
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		return records, nil
	}

	engine := merge.NewEngine(fetchOnline, fetchOffline, merger.Merge)

	view := &View{owner: owner, engine: engine, merger: merger}
	if bus != nil {
		view.unsubscribe = bus.OnMultiple(
			[]events.Type{events.JobAdded, events.JobCompleted, events.JobFailed, events.SyncCompleted},
			func(event events.Event) {
				engine.InvalidateOffline()
				if event.Type == events.SyncCompleted {
					// A completed cycle may also have changed what the
					// remote will report next.
					engine.InvalidateOnline()
				}
			},
		)
	}
	return view
}

// Records returns the merged, deduplicated view, newest-first.
func (v *View) Records(ctx context.Context) ([]Record, error) {
	return v.engine.Merged(ctx)
}

// Online returns the remote snapshot.
func (v *View) Online(ctx context.Context) ([]Record, error) {
	return v.engine.Online(ctx)
}

// Offline returns the local snapshot.
func (v *View) Offline(ctx context.Context) ([]Record, error) {
	return v.engine.Offline(ctx)
}

// State reports the reconciliation phase of the underlying engine.
func (v *View) State() merge.State {
	return v.engine.State()
}

// SetOptimisticStatus applies a local status override that survives
// re-merges until its TTL expires.
func (v *View) SetOptimisticStatus(recordID string, status Status) {
	v.merger.SetOptimisticStatus(recordID, status)
	v.engine.Trigger()
}

// Refresh marks both sources stale so the next query refetches.
func (v *View) Refresh() {
	v.engine.InvalidateOnline()
	v.engine.InvalidateOffline()
}

// Close detaches the view from the event bus.
func (v *View) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}
