// Package config loads, normalizes, and validates the TOML configuration
// shared by the gardenlog CLI and sync agent.
package config
