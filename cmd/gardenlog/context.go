package main

import (
	"log/slog"
	"strings"
	"sync"

	"gardenlog/internal/agent"
	"gardenlog/internal/config"
	"gardenlog/internal/logging"
	"gardenlog/internal/remote"
	"gardenlog/internal/syncer"
)

type commandContext struct {
	configFlag  *string
	offlineFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, offlineFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		offlineFlag: offlineFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) offline() bool {
	return c.offlineFlag != nil && *c.offlineFlag
}

// remoteClient returns the attestation client, or nil when no remote is
// configured or --offline was requested.
func (c *commandContext) remoteClient(cfg *config.Config) *remote.Client {
	if c.offline() {
		return nil
	}
	return remote.NewClient(cfg)
}

// withStack wires a full service graph for the duration of fn and tears it
// down afterwards. CLI invocations log to the shared log file so agent and
// one-shot runs interleave in the same stream.
func (c *commandContext) withStack(fn func(*agent.Stack, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	var submitter syncer.Submitter
	if client := c.remoteClient(cfg); client != nil {
		submitter = client
	}

	stack, err := agent.Wire(cfg, submitter, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	return fn(stack, logger)
}
