// Package loadtest drives a running rating service with synthetic match
// traffic and checks the responses for idempotency and conservation.
package loadtest

import (
	"sync/atomic"
	"time"
)

// Config controls a load test run.
type Config struct {
	// BaseURL of the service under test, e.g. http://localhost:9080.
	BaseURL string

	// NumMatches is how many distinct matches to submit.
	NumMatches int

	// NumPlayers sizes the player pool matches are drawn from.
	NumPlayers int

	// Workers is the number of concurrent submitters.
	Workers int

	// DuplicateRatio is the fraction of matches resubmitted a second
	// time to exercise the idempotency path.
	DuplicateRatio float64

	// TopN is how many leaderboard entries to fetch at the end.
	TopN int

	// DefaultRating is the service's configured initial rating, used by
	// the conservation check.
	DefaultRating float64

	// Timeout applies to each HTTP request.
	Timeout time.Duration

	// Subscribe opens a websocket and counts received rating changes.
	Subscribe bool

	// Verbose enables per-request logging.
	Verbose bool
}

// Stats accumulates results across concurrent submitters.
type Stats struct {
	MatchesGenerated int

	MatchesSubmitted atomic.Int64
	MatchesApplied   atomic.Int64
	MatchesDuplicate atomic.Int64
	MatchesFailed    atomic.Int64

	EventsReceived atomic.Int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
