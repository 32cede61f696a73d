package syncer

import (
	"context"
	"time"

	"gardenlog/internal/logging"
)

// RunOptions tunes the automatic trigger loop.
type RunOptions struct {
	PollInterval       time.Duration
	ErrorRetryInterval time.Duration
}

// Run drives automatic flush cycles until the context is cancelled. A cycle
// fires at start, on every offline-to-online transition, on TriggerFlush,
// and at the poll interval while online.
func (e *Engine) Run(ctx context.Context, opts RunOptions) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}

	if e.Online() {
		e.flushQuietly(ctx)
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.trigger:
			e.flushQuietly(ctx)
		case <-ticker.C:
			if e.Online() {
				e.flushQuietly(ctx)
			}
		}
	}
}

func (e *Engine) flushQuietly(ctx context.Context) {
	if _, err := e.Flush(ctx); err != nil && ctx.Err() == nil {
		e.logger.Warn("flush cycle aborted", logging.Error(err))
	}
}

// SetOnline records a connectivity change. An offline-to-online transition
// queues an immediate flush.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	e.mu.Unlock()

	if online && !wasOnline {
		e.TriggerFlush()
	}
}

// Online reports the last known connectivity state.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// TriggerFlush requests a flush from the run loop. Requests coalesce: many
// triggers while a cycle runs produce at most one follow-up cycle.
func (e *Engine) TriggerFlush() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}
