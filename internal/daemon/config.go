package daemon

import (
	"errors"
	"time"
)

// Config carries everything one mirror daemon needs. Paths are kept
// exactly as given, the workspace resolves them.
type Config struct {
	SourceDir   string
	ReplicaDir  string
	Interval    time.Duration
	LogFile     string
	Excludes    []string
	ExcludeFrom string
	Once        bool
	DryRun      bool
}

func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return errors.New("source directory is required")
	}
	if c.ReplicaDir == "" {
		return errors.New("replica directory is required")
	}
	if c.Interval < time.Second {
		return errors.New("interval must be at least 1 second")
	}
	if c.LogFile == "" {
		return errors.New("log file is required")
	}
	return nil
}
