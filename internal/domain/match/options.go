package match

import (
	"time"

	"github.com/okian/duelo/pkg/logger"
)

// Default coordination tuning.
const (
	defaultLockTimeout   = 2 * time.Second
	defaultCommitRetries = 3

	// Mark-applied retry tuning. Retries must finish well inside the
	// guard's reservation TTL, while the reservation still fences out
	// resubmissions of the already-committed match.
	markAppliedRetries = 3
	markRetryBackoff   = 50 * time.Millisecond
)

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithPublisher wires the event sink that receives rating changes after
// each commit.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithLockTimeout bounds how long Apply waits for the player locks.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.lockTimeout = d
		}
	}
}

// WithCommitRetries sets how many times a lost version check is retried.
func WithCommitRetries(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.commitRetries = n
		}
	}
}

// WithAllowDraws accepts draw outcomes in submitted results.
func WithAllowDraws(allow bool) Option {
	return func(c *Coordinator) {
		c.allowDraws = allow
	}
}

// WithLogger sets a custom logger for the coordinator.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}
