// Package dedupe implements the idempotency guard that ensures a match's
// rating effect is applied at most once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/duelo/internal/domain/model"
)

// Guard records which match IDs have been applied and arbitrates racing
// submissions for the same match.
//
// Reserve is the sole synchronization primitive against duplicate
// application: it must be an atomic insert-if-absent. Exactly one of N
// concurrent callers for the same unapplied match ID gets a nil error;
// the rest get ErrInFlight or ErrAlreadyApplied. A plain read-then-write
// check is not an acceptable implementation.
type Guard interface {
	// Reserve claims matchID for application. Returns ErrAlreadyApplied if
	// the match's outcome has been committed, ErrInFlight if another caller
	// holds a live reservation.
	Reserve(ctx context.Context, matchID string) error

	// MarkApplied promotes a reservation to a permanent applied record,
	// retaining the outcome for replay responses.
	MarkApplied(ctx context.Context, matchID string, outcome model.MatchOutcome) error

	// Release rolls back a reservation whose rating commit failed, so the
	// match can be retried. Applied records are never released.
	Release(ctx context.Context, matchID string) error

	// Applied returns the stored outcome for matchID, if committed.
	Applied(ctx context.Context, matchID string) (*model.MatchOutcome, bool, error)
}

// record tracks one match ID inside the in-memory guard.
type record struct {
	applied    bool
	reservedAt time.Time
	outcome    model.MatchOutcome
}

// inMemoryGuard implements Guard with a mutex-protected map.
//
// Reservations expire after the configured TTL so a holder that crashed
// between Reserve and MarkApplied never permanently blocks a retry.
// Applied records are immutable and retained for the process lifetime;
// long-term pruning belongs to an external retention policy.
type inMemoryGuard struct {
	mu             sync.Mutex
	records        map[string]*record
	reservationTTL time.Duration
	size           atomic.Int64
	now            func() time.Time
}

// NewInMemoryGuard creates a new in-memory guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		reservationTTL: defaultReservationTTL,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.records = make(map[string]*record)

	return g
}

// Reserve claims matchID for application.
func (g *inMemoryGuard) Reserve(ctx context.Context, matchID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, exists := g.records[matchID]; exists {
		if rec.applied {
			return ErrAlreadyApplied
		}
		if g.now().Sub(rec.reservedAt) < g.reservationTTL {
			return ErrInFlight
		}
		// Expired reservation: the previous holder is presumed dead.
		rec.reservedAt = g.now()
		return nil
	}

	g.records[matchID] = &record{reservedAt: g.now()}
	g.size.Add(1)
	return nil
}

// MarkApplied promotes a reservation to an applied record.
func (g *inMemoryGuard) MarkApplied(ctx context.Context, matchID string, outcome model.MatchOutcome) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, exists := g.records[matchID]
	if !exists {
		rec = &record{}
		g.records[matchID] = rec
		g.size.Add(1)
	}
	if rec.applied {
		return ErrAlreadyApplied
	}
	rec.applied = true
	rec.outcome = outcome
	return nil
}

// Release rolls back an unapplied reservation.
func (g *inMemoryGuard) Release(ctx context.Context, matchID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, exists := g.records[matchID]
	if !exists {
		return nil
	}
	if rec.applied {
		return ErrAlreadyApplied
	}
	delete(g.records, matchID)
	g.size.Add(-1)
	return nil
}

// Applied returns the stored outcome for matchID, if committed.
func (g *inMemoryGuard) Applied(ctx context.Context, matchID string) (*model.MatchOutcome, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, exists := g.records[matchID]
	if !exists || !rec.applied {
		return nil, false, nil
	}
	out := rec.outcome
	return &out, true, nil
}

// Size returns the number of match IDs tracked by the guard.
func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
