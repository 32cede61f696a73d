package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	if err := c.validateQuota(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RetryCap < 1 {
		return errors.New("sync.retry_cap must be at least 1")
	}
	if c.Sync.PollInterval < 1 {
		return errors.New("sync.poll_interval must be at least 1 second")
	}
	if c.Sync.ErrorRetryInterval < 1 {
		return errors.New("sync.error_retry_interval must be at least 1 second")
	}
	return nil
}

func (c *Config) validateMerge() error {
	if c.Merge.DedupWindowSeconds < 0 {
		return errors.New("merge.dedup_window_seconds must not be negative")
	}
	if c.Merge.OptimisticTTLSeconds < 0 {
		return errors.New("merge.optimistic_ttl_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateQuota() error {
	if c.Quota.SafetyMargin < 0 || c.Quota.SafetyMargin >= 1 {
		return fmt.Errorf("quota.safety_margin must be in [0, 1), got %v", c.Quota.SafetyMargin)
	}
	return nil
}
