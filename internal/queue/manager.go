package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gardenlog/internal/events"
	"gardenlog/internal/logging"
	"gardenlog/internal/quota"
)

// Manager exposes the job queue CRUD surface. It is the only writer to the
// Store; the flush engine and conflict resolver both go through it.
type Manager struct {
	store    *Store
	bus      *events.Bus
	guard    *quota.Guard
	logger   *slog.Logger
	retryCap int
}

// NewManager constructs a queue manager.
func NewManager(store *Store, bus *events.Bus, guard *quota.Guard, logger *slog.Logger, retryCap int) *Manager {
	return &Manager{
		store:    store,
		bus:      bus,
		guard:    guard,
		logger:   logging.NewComponentLogger(logger, "queue"),
		retryCap: retryCap,
	}
}

// Store returns the underlying store for read-side consumers.
func (m *Manager) Store() *Store {
	return m.store
}

// RetryCap returns the attempt count at which automatic flushing stops.
func (m *Manager) RetryCap() int {
	return m.retryCap
}

// AddJob persists a new job with its media refs and emits job:added. The
// estimated payload size is checked against the quota guard first; a full
// store rejects the capture with ErrQuotaExceeded before any data is written.
func (m *Manager) AddJob(ctx context.Context, owner string, kind Kind, payload any, media []MediaRef, meta map[string]string) (*Job, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner address is required")
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	required := uint64(len(payloadJSON))
	for _, ref := range media {
		if ref.SizeBytes > 0 {
			required += uint64(ref.SizeBytes)
		}
	}
	if result := m.guard.Check(ctx, required); !result.HasSpace {
		return nil, fmt.Errorf("%w: %d bytes required", ErrQuotaExceeded, required)
	}

	job := &Job{
		ID:           NewJobID(),
		OwnerAddress: owner,
		Kind:         kind,
		Payload:      payloadJSON,
		ClientWorkID: NewClientWorkID(),
		CreatedAt:    time.Now().UTC(),
	}
	if len(meta) > 0 {
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encode meta: %w", err)
		}
		job.MetaJSON = string(metaJSON)
	}

	if err := m.store.Put(ctx, job); err != nil {
		return nil, err
	}

	for i := range media {
		media[i].JobID = job.ID
		if media[i].ID == "" {
			media[i].ID = NewJobID()
		}
	}
	if err := m.store.AddMediaRefs(ctx, media...); err != nil {
		return nil, err
	}

	m.logger.Info("job added",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, owner),
		logging.String(logging.FieldEventType, string(events.JobAdded)),
	)
	m.bus.Emit(events.Event{Type: events.JobAdded, JobID: job.ID, Owner: owner, Payload: job})

	return job, nil
}

// Jobs returns jobs scoped to one owner. Cross-owner isolation is structural:
// the owner predicate is always bound, regardless of the supplied filter.
func (m *Manager) Jobs(ctx context.Context, owner string, filter Filter) ([]*Job, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner address is required")
	}
	filter.Owner = owner
	return m.store.List(ctx, filter)
}

// Job fetches a single job by id.
func (m *Manager) Job(ctx context.Context, id string) (*Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// MediaRefs returns the media references attached to a job.
func (m *Manager) MediaRefs(ctx context.Context, jobID string) ([]MediaRef, error) {
	return m.store.MediaRefsByJob(ctx, jobID)
}

// Stats aggregates queue counts for one owner.
func (m *Manager) Stats(ctx context.Context, owner string) (Stats, error) {
	if owner == "" {
		return Stats{}, fmt.Errorf("owner address is required")
	}
	return m.store.Stats(ctx, owner, m.retryCap)
}

// DeleteJob removes a job and its media refs.
func (m *Manager) DeleteJob(ctx context.Context, id string) error {
	removed, err := m.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	m.logger.Info("job deleted", logging.String(logging.FieldJobID, id))
	return nil
}

// ReplaceJobPayload rewrites a job's payload and resets its submission
// bookkeeping so it is flushed again as fresh work.
func (m *Manager) ReplaceJobPayload(ctx context.Context, id string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return m.store.ReplacePayload(ctx, id, payloadJSON)
}

// MarkSynced records a confirmed remote counterpart for a job. Only the
// flush engine calls this; the store itself stays behind the Manager.
func (m *Manager) MarkSynced(ctx context.Context, id string) error {
	return m.store.MarkSynced(ctx, id)
}

// RecordFailure bumps the attempt counter and stores the submission error,
// returning the updated job for event payloads.
func (m *Manager) RecordFailure(ctx context.Context, id, message string) (*Job, error) {
	if err := m.store.RecordFailure(ctx, id, message); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, id)
}

// Retry resets failure bookkeeping for the given jobs (or every errored job
// when none are named) so they re-enter automatic flush cycles.
func (m *Manager) Retry(ctx context.Context, ids ...string) (int64, error) {
	count, err := m.store.ResetRetry(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.logger.Info("jobs reset for retry", logging.Int64("count", count))
	}
	return count, nil
}
