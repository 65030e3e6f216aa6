package config

import (
	"fmt"

	"github.com/agriexport/dispatchboard/core/dispatch/logging"
)

// LoggingConfig defines settings for the attempt audit log and rotation.
type LoggingConfig struct {
	// Backend selects the log store type: "jsonl", "sqlite" or "memory".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
	// History bounds the memory backend.
	History int `json:"history"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "memory" {
		c.Path = "dispatch_attempts.log"
	}
	if c.History == 0 {
		c.History = 500
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("logging: path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("logging: unknown backend %s", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging: rotation limits must not be negative")
	}
	return nil
}

// Open creates the configured store. A jsonl backend with MaxSizeMB set
// rotates through lumberjack.
func (c LoggingConfig) Open() (logging.LogStore, error) {
	switch c.Backend {
	case "memory":
		return logging.NewMemoryStore(c.History), nil
	case "sqlite":
		return logging.NewSQLiteStore(c.Path)
	case "jsonl":
		if c.MaxSizeMB > 0 {
			return logging.NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return logging.NewJSONLStore(c.Path)
	default:
		return nil, fmt.Errorf("logging: unknown backend %s", c.Backend)
	}
}
