package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gardenlog/internal/events"
	"gardenlog/internal/logging"
	"gardenlog/internal/queue"
)

// Submitter is the external submission API boundary. Implementations must be
// idempotent against duplicate resubmission: a job left mid-flight by a crash
// is drained again on restart, correlated by its ClientWorkID.
type Submitter interface {
	SubmitWork(ctx context.Context, job *queue.Job) (remoteID string, err error)
}

// Summary describes the outcome of one flush cycle.
type Summary struct {
	Submitted int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Engine drains unsynced jobs against the submission API. At most one flush
// cycle runs at a time per engine; concurrent Flush calls piggyback on the
// in-flight cycle rather than racing duplicate submissions.
type Engine struct {
	manager   *queue.Manager
	bus       *events.Bus
	submitter Submitter
	logger    *slog.Logger

	mu          sync.Mutex
	inflight    chan struct{}
	lastSummary Summary

	online  bool
	trigger chan struct{}
}

// NewEngine constructs a flush engine.
func NewEngine(manager *queue.Manager, bus *events.Bus, submitter Submitter, logger *slog.Logger) *Engine {
	return &Engine{
		manager:   manager,
		bus:       bus,
		submitter: submitter,
		logger:    logging.NewComponentLogger(logger, "syncer"),
		trigger:   make(chan struct{}, 1),
	}
}

// Flush runs one drain cycle, or joins the cycle already in flight. Jobs are
// drained oldest-first and strictly sequentially; a single job's failure is
// recorded on the job and never aborts the cycle or escapes this call. The
// cycle ends with a queue:sync-completed event regardless of partial failures.
func (e *Engine) Flush(ctx context.Context) (Summary, error) {
	e.mu.Lock()
	if e.inflight != nil {
		done := e.inflight
		e.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return Summary{}, ctx.Err()
		}
		e.mu.Lock()
		summary := e.lastSummary
		e.mu.Unlock()
		return summary, nil
	}
	done := make(chan struct{})
	e.inflight = done
	e.mu.Unlock()

	summary := e.runCycle(ctx)

	e.mu.Lock()
	e.lastSummary = summary
	e.inflight = nil
	close(done)
	e.mu.Unlock()

	return summary, nil
}

func (e *Engine) runCycle(ctx context.Context) Summary {
	start := time.Now()
	summary := Summary{}

	jobs, err := e.manager.Store().Unsynced(ctx)
	if err != nil {
		e.logger.Error("failed to load unsynced jobs",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
		summary.Duration = time.Since(start)
		e.emitCompleted(summary)
		return summary
	}

	if e.submitter == nil {
		// No remote configured. Jobs stay queued without burning attempts.
		summary.Skipped = len(jobs)
		summary.Duration = time.Since(start)
		if len(jobs) > 0 {
			e.logger.Warn("no remote configured, jobs remain queued",
				logging.Int("skipped", summary.Skipped),
			)
		}
		e.emitCompleted(summary)
		return summary
	}

	retryCap := e.manager.RetryCap()
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			summary.Duration = time.Since(start)
			e.emitCompleted(summary)
			return summary
		default:
		}

		// Capped jobs wait for an explicit retry; automatic cycles skip
		// them so a dead remote cannot produce an unbounded retry storm.
		if job.LastError != "" && job.Attempts >= retryCap {
			summary.Skipped++
			continue
		}

		e.submitJob(ctx, job, &summary)
	}

	summary.Duration = time.Since(start)
	e.logger.Info("flush cycle completed",
		logging.Int("submitted", summary.Submitted),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("duration", summary.Duration),
	)
	e.emitCompleted(summary)
	return summary
}

func (e *Engine) submitJob(ctx context.Context, job *queue.Job, summary *Summary) {
	remoteID, err := e.submitter.SubmitWork(ctx, job)
	if err != nil {
		summary.Failed++
		updated, recordErr := e.manager.RecordFailure(ctx, job.ID, err.Error())
		if recordErr != nil {
			e.logger.Error("failed to record submission failure",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(recordErr),
			)
			return
		}
		attempts := job.Attempts + 1
		if updated != nil {
			attempts = updated.Attempts
		}
		e.logger.Warn("job submission failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Int(logging.FieldAttempts, attempts),
			logging.Error(err),
		)
		e.bus.Emit(events.Event{Type: events.JobFailed, JobID: job.ID, Owner: job.OwnerAddress, Payload: err.Error()})
		return
	}

	if err := e.manager.MarkSynced(ctx, job.ID); err != nil {
		// The remote accepted the work but the local flag write failed.
		// Leave the job queued; the ClientWorkID makes the redundant
		// resubmission idempotent downstream.
		summary.Failed++
		e.logger.Error("failed to mark job synced",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
		return
	}

	summary.Submitted++
	e.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("remote_id", remoteID),
	)
	e.bus.Emit(events.Event{Type: events.JobCompleted, JobID: job.ID, Owner: job.OwnerAddress, Payload: remoteID})
}

func (e *Engine) emitCompleted(summary Summary) {
	e.bus.Emit(events.Event{Type: events.SyncCompleted, Payload: summary})
}

// ConfirmRemote deletes a synced local job once a remote observation carries
// its ClientWorkID. Deletion waits for this confirmation to tolerate indexer
// lag between submission and remote visibility.
func (e *Engine) ConfirmRemote(ctx context.Context, clientWorkID string) error {
	job, err := e.manager.Store().FindByClientWorkID(ctx, clientWorkID)
	if err != nil {
		return err
	}
	if job == nil || !job.Synced {
		return nil
	}
	if err := e.manager.DeleteJob(ctx, job.ID); err != nil {
		return err
	}
	e.logger.Info("remote counterpart confirmed, local job removed",
		logging.String(logging.FieldJobID, job.ID),
	)
	return nil
}
