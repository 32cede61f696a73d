// Package agent runs the background sync service: it wires the store,
// queue manager, event bus, and flush engine together and enforces
// single-instance execution with a file lock.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gardenlog/internal/config"
	"gardenlog/internal/events"
	"gardenlog/internal/logging"
	"gardenlog/internal/queue"
	"gardenlog/internal/quota"
	"gardenlog/internal/syncer"
)

// Agent coordinates the flush engine lifecycle and enforces single-instance
// execution.
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	engine *syncer.Engine

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an agent with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, engine *syncer.Engine, logger *slog.Logger) (*Agent, error) {
	if cfg == nil || store == nil || engine == nil || logger == nil {
		return nil, errors.New("agent requires config, store, engine, and logger")
	}

	lockPath := filepath.Join(cfg.DataDir(), "gardenlog.lock")
	return &Agent{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "agent"),
		store:    store,
		engine:   engine,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the agent lock and launches the flush engine run loop.
func (a *Agent) Start(ctx context.Context) error {
	if a.running.Load() {
		return errors.New("agent already running")
	}

	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gardenlog agent instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.engine.SetOnline(true)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.engine.Run(runCtx, syncer.RunOptions{
			PollInterval:       time.Duration(a.cfg.Sync.PollInterval) * time.Second,
			ErrorRetryInterval: time.Duration(a.cfg.Sync.ErrorRetryInterval) * time.Second,
		})
	}()

	a.running.Store(true)
	a.logger.Info("gardenlog agent started", logging.String("lock", a.lockPath))
	return nil
}

// Stop stops background processing and releases the agent lock.
func (a *Agent) Stop() {
	if !a.running.Load() {
		return
	}

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.wg.Wait()
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("failed to release agent lock", logging.Error(err))
	}
	a.running.Store(false)
	a.logger.Info("gardenlog agent stopped")
}

// Close releases resources held by the agent.
func (a *Agent) Close() error {
	a.Stop()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Running reports whether the agent loop is active.
func (a *Agent) Running() bool {
	return a.running.Load()
}

// Stack holds a fully wired service graph.
type Stack struct {
	Config  *config.Config
	Store   *queue.Store
	Bus     *events.Bus
	Manager *queue.Manager
	Engine  *syncer.Engine
}

// Wire opens the store and assembles the bus, queue manager, and flush
// engine with shared configuration. The submitter may be nil for fully
// offline operation; the flush engine then records failures locally.
func Wire(cfg *config.Config, submitter syncer.Submitter, logger *slog.Logger) (*Stack, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bus := events.NewBus()
	guard := quota.NewGuard(quota.DiskEstimator{Path: cfg.DataDir()}, cfg.Quota.SafetyMargin, logger)
	manager := queue.NewManager(store, bus, guard, logger, cfg.Sync.RetryCap)
	engine := syncer.NewEngine(manager, bus, submitter, logger)

	return &Stack{
		Config:  cfg,
		Store:   store,
		Bus:     bus,
		Manager: manager,
		Engine:  engine,
	}, nil
}

// Close releases the stack's store.
func (s *Stack) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
