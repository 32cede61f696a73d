package work

import (
	"sort"
	"sync"
	"time"
)

// Merger combines online and offline record snapshots into one deduplicated
// view. Online records are authoritative and inserted first; an offline
// record joins the view only when it is not a duplicate of an online one.
//
// Duplicate detection falls back in priority order: a ClientWorkID match,
// then a heuristic match on the same ActionUID with creation times closer
// than the dedup window.
type Merger struct {
	dedupWindow   time.Duration
	optimisticTTL time.Duration
	now           func() time.Time

	mu        sync.Mutex
	overrides map[string]optimisticOverride
}

type optimisticOverride struct {
	status    Status
	appliedAt time.Time
}

// NewMerger constructs a merger. optimisticTTL bounds how long a locally
// applied optimistic status survives re-merges before the authoritative
// status wins again; zero disables the cap.
func NewMerger(dedupWindow, optimisticTTL time.Duration) *Merger {
	return &Merger{
		dedupWindow:   dedupWindow,
		optimisticTTL: optimisticTTL,
		now:           time.Now,
		overrides:     make(map[string]optimisticOverride),
	}
}

// SetOptimisticStatus records a local optimistic status for a record. The
// override is preserved across re-merges until the TTL expires or
// ClearOptimisticStatus is called, avoiding visible flicker while the
// authoritative confirmation is in flight.
func (m *Merger) SetOptimisticStatus(recordID string, status Status) {
	m.mu.Lock()
	m.overrides[recordID] = optimisticOverride{status: status, appliedAt: m.now()}
	m.mu.Unlock()
}

// ClearOptimisticStatus drops a recorded override.
func (m *Merger) ClearOptimisticStatus(recordID string) {
	m.mu.Lock()
	delete(m.overrides, recordID)
	m.mu.Unlock()
}

// Merge produces the deduplicated, status-annotated view, newest-first.
// Merging the same snapshots twice yields identical output.
func (m *Merger) Merge(online, offline []Record) ([]Record, error) {
	merged := make([]Record, 0, len(online)+len(offline))
	byClientWorkID := make(map[string]struct{}, len(online))

	for _, record := range online {
		merged = append(merged, record)
		if record.ClientWorkID != "" {
			byClientWorkID[record.ClientWorkID] = struct{}{}
		}
	}

	for _, record := range offline {
		if m.isDuplicate(record, online, byClientWorkID) {
			continue
		}
		merged = append(merged, record)
	}

	m.applyOverrides(merged)

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}

func (m *Merger) isDuplicate(offline Record, online []Record, byClientWorkID map[string]struct{}) bool {
	if offline.ClientWorkID != "" {
		if _, ok := byClientWorkID[offline.ClientWorkID]; ok {
			return true
		}
	}
	for _, candidate := range online {
		// The ClientWorkID check above already covers correlated pairs;
		// this heuristic catches records submitted before correlation ids
		// were recorded.
		if candidate.ActionUID != offline.ActionUID {
			continue
		}
		delta := candidate.CreatedAt.Sub(offline.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta < m.dedupWindow {
			return true
		}
	}
	return false
}

func (m *Merger) applyOverrides(records []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.overrides) == 0 {
		return
	}

	now := m.now()
	for id, override := range m.overrides {
		if m.optimisticTTL > 0 && now.Sub(override.appliedAt) > m.optimisticTTL {
			delete(m.overrides, id)
		}
	}

	for i := range records {
		if override, ok := m.overrides[records[i].ID]; ok {
			records[i].Status = override.status
		}
	}
}
