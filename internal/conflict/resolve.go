package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gardenlog/internal/logging"
	"gardenlog/internal/queue"
)

// Strategy selects how a conflict is settled.
type Strategy string

const (
	// StrategyKeepLocal keeps the local payload and queues it for
	// resubmission. Only meaningful before the local copy has synced.
	StrategyKeepLocal Strategy = "keep_local"
	// StrategyKeepRemote discards the local job and accepts the
	// authoritative remote copy.
	StrategyKeepRemote Strategy = "keep_remote"
	// StrategyMerge reconciles field-by-field automatically. Valid only
	// when every finding is auto-resolvable.
	StrategyMerge Strategy = "merge"
	// StrategyManual rewrites the local job with a caller-supplied payload.
	StrategyManual Strategy = "manual"
)

// ErrConflictUnresolved blocks treating a record as settled until a valid
// resolution strategy is applied.
var ErrConflictUnresolved = errors.New("conflict unresolved")

// ParseStrategy validates a strategy name from user input.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(value) {
	case StrategyKeepLocal, StrategyKeepRemote, StrategyMerge, StrategyManual:
		return Strategy(value), nil
	default:
		return "", fmt.Errorf("unknown strategy %q", value)
	}
}

// Resolver applies resolution strategies. Resolution is terminal: the local
// job is deleted or rewritten through the queue manager so the same conflict
// cannot reappear on the next merge cycle.
type Resolver struct {
	manager *queue.Manager
	logger  *slog.Logger
}

// NewResolver constructs a resolver over the queue manager.
func NewResolver(manager *queue.Manager, logger *slog.Logger) *Resolver {
	return &Resolver{
		manager: manager,
		logger:  logging.NewComponentLogger(logger, "conflict"),
	}
}

// Resolve settles the conflict with the chosen strategy. manualPayload is
// required for StrategyManual and ignored otherwise.
func (r *Resolver) Resolve(ctx context.Context, c *Conflict, strategy Strategy, manualPayload *queue.WorkPayload) error {
	if c == nil {
		return fmt.Errorf("%w: no conflict provided", ErrConflictUnresolved)
	}

	var err error
	switch strategy {
	case StrategyKeepRemote:
		err = r.manager.DeleteJob(ctx, c.RecordID)
	case StrategyKeepLocal:
		err = r.keepLocal(ctx, c)
	case StrategyMerge:
		err = r.mergeFields(ctx, c)
	case StrategyManual:
		if manualPayload == nil {
			return fmt.Errorf("%w: manual resolution requires a replacement payload", ErrConflictUnresolved)
		}
		err = r.manager.ReplaceJobPayload(ctx, c.RecordID, manualPayload)
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrConflictUnresolved, strategy)
	}
	if err != nil {
		return err
	}

	r.logger.Info("conflict resolved",
		logging.String("record_id", c.RecordID),
		logging.String("strategy", string(strategy)),
	)
	return nil
}

func (r *Resolver) keepLocal(ctx context.Context, c *Conflict) error {
	job, err := r.manager.Job(ctx, c.RecordID)
	if err != nil {
		return err
	}
	if job.Synced {
		return fmt.Errorf("%w: job %s already synced, keep_local is only meaningful pre-submission", ErrConflictUnresolved, job.ID)
	}
	_, err = r.manager.Retry(ctx, job.ID)
	return err
}

// mergeFields applies the conservative field-union: the authoritative remote
// value wins any field both sides populate, local values fill fields the
// remote left empty, and the rewritten job is queued for resubmission.
func (r *Resolver) mergeFields(ctx context.Context, c *Conflict) error {
	if !c.AutoResolvable() {
		return fmt.Errorf("%w: record %s has findings that require user choice", ErrConflictUnresolved, c.RecordID)
	}

	job, err := r.manager.Job(ctx, c.RecordID)
	if err != nil {
		return err
	}
	payload, err := job.WorkPayload()
	if err != nil {
		return err
	}

	if c.Remote.GardenAddress != "" {
		payload.GardenAddress = c.Remote.GardenAddress
	}
	if c.Remote.ActionUID != 0 {
		payload.ActionUID = c.Remote.ActionUID
	}
	if title, ok := c.Remote.Metadata["title"]; ok && title != "" {
		payload.Title = title
	}
	if feedback, ok := c.Remote.Metadata["feedback"]; ok && feedback != "" {
		payload.Feedback = feedback
	}

	return r.manager.ReplaceJobPayload(ctx, c.RecordID, payload)
}
