// Package match applies submitted match results to player ratings with
// exactly-once semantics: each match ID changes ratings at most once, no
// matter how often or how concurrently it is submitted.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/duelo/internal/adapters/repository"
	"github.com/okian/duelo/internal/domain/dedupe"
	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/internal/domain/rating"
	"github.com/okian/duelo/pkg/logger"
	"github.com/okian/duelo/pkg/metrics"
)

// Publisher receives rating-change events after a match commits. It must
// not block; delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, e model.RatingChangeEvent)
}

// noopPublisher drops events. Used when no hub is wired in.
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.RatingChangeEvent) {}

// Coordinator owns the apply pipeline: validate, deduplicate, lock both
// players, recompute ratings, commit, record, publish.
type Coordinator struct {
	guard  dedupe.Guard
	store  repository.Store
	engine rating.Engine

	publisher Publisher
	locks     *keyedLocks

	lockTimeout   time.Duration
	commitRetries int
	allowDraws    bool

	logger logger.Logger
}

// NewCoordinator creates a coordinator over the given guard, store and
// rating engine.
func NewCoordinator(guard dedupe.Guard, store repository.Store, engine rating.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{
		guard:         guard,
		store:         store,
		engine:        engine,
		publisher:     noopPublisher{},
		locks:         newKeyedLocks(),
		lockTimeout:   defaultLockTimeout,
		commitRetries: defaultCommitRetries,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("coordinator")
	}

	return c
}

// Apply processes one match result. On first application it returns the
// resulting outcome with duplicate=false. A match ID that was already
// applied returns the original outcome with duplicate=true and no error;
// the resubmission changes nothing.
//
// A match currently being applied by another caller fails with
// dedupe.ErrInFlight. Persistent commit contention fails with
// ErrRetriesExhausted; in both cases the reservation is released so the
// client can retry.
func (c *Coordinator) Apply(ctx context.Context, res model.MatchResult) (outcome *model.MatchOutcome, duplicate bool, err error) {
	if verr := c.validate(res); verr != nil {
		metrics.RecordValidationFailure(verr.Field)
		return nil, false, verr
	}

	start := time.Now()

	// Fast path: replayed matches answer from the guard without touching
	// the store or locks.
	if stored, ok, gerr := c.guard.Applied(ctx, res.MatchID); gerr != nil {
		return nil, false, fmt.Errorf("dedupe lookup: %w", gerr)
	} else if ok {
		metrics.RecordMatchDuplicate()
		return stored, true, nil
	}

	if rerr := c.guard.Reserve(ctx, res.MatchID); rerr != nil {
		switch {
		case errors.Is(rerr, dedupe.ErrAlreadyApplied):
			stored, ok, gerr := c.guard.Applied(ctx, res.MatchID)
			if gerr != nil || !ok {
				return nil, false, fmt.Errorf("dedupe lookup after lost reserve race: %w", gerr)
			}
			metrics.RecordMatchDuplicate()
			return stored, true, nil
		case errors.Is(rerr, dedupe.ErrInFlight):
			return nil, false, rerr
		default:
			return nil, false, fmt.Errorf("reserve match: %w", rerr)
		}
	}

	if lerr := c.locks.acquirePair(ctx, res.Player1ID, res.Player2ID, c.lockTimeout); lerr != nil {
		c.releaseReservation(ctx, res.MatchID)
		if errors.Is(lerr, ErrLockTimeout) {
			metrics.RecordLockTimeout()
		}
		return nil, false, lerr
	}
	defer c.locks.releasePair(res.Player1ID, res.Player2ID)

	outcome, err = c.commit(ctx, res)
	if err != nil {
		c.releaseReservation(ctx, res.MatchID)
		return nil, false, err
	}

	if merr := c.markApplied(ctx, res.MatchID, *outcome); merr != nil {
		// Ratings are already committed but the guard still shows a live
		// reservation; once its TTL expires a resubmission would apply
		// the match a second time. Flag it for reconciliation.
		c.logger.Error(ctx, "mark applied failed after commit; reconcile before the reservation expires",
			logger.String("matchID", res.MatchID),
			logger.Error(merr),
		)
	}

	c.publisher.Publish(ctx, outcome.Player1)
	c.publisher.Publish(ctx, outcome.Player2)

	metrics.RecordMatchApplied()
	metrics.RecordApplyLatency(float64(time.Since(start).Milliseconds()))

	c.logger.Info(ctx, "match applied",
		logger.String("matchID", res.MatchID),
		logger.String("player1ID", res.Player1ID),
		logger.String("player2ID", res.Player2ID),
		logger.Float64("player1Rating", outcome.Player1.NewRating),
		logger.Float64("player2Rating", outcome.Player2.NewRating),
	)

	return outcome, false, nil
}

// commit runs the read-compute-write cycle under the player locks,
// retrying while version checks lose to concurrent commits.
func (c *Coordinator) commit(ctx context.Context, res model.MatchResult) (*model.MatchOutcome, error) {
	for attempt := 0; attempt <= c.commitRetries; attempt++ {
		p1, err := c.store.Get(ctx, res.Player1ID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", res.Player1ID, err)
		}
		p2, err := c.store.Get(ctx, res.Player2ID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", res.Player2ID, err)
		}

		new1, new2 := c.engine.Apply(p1.Rating, p2.Rating, res.Outcome)

		now := time.Now().UTC()
		up1, up2 := p1, p2
		up1.Rating, up1.MatchesPlayed, up1.UpdatedAt = new1, p1.MatchesPlayed+1, now
		up2.Rating, up2.MatchesPlayed, up2.UpdatedAt = new2, p2.MatchesPlayed+1, now

		err = c.store.CommitPair(ctx, up1, up2)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("commit pair: %w", err)
		}

		return &model.MatchOutcome{
			MatchID: res.MatchID,
			Player1: model.RatingChangeEvent{
				MatchID:       res.MatchID,
				PlayerID:      res.Player1ID,
				OldRating:     p1.Rating,
				NewRating:     new1,
				MatchesPlayed: up1.MatchesPlayed,
				Timestamp:     now,
			},
			Player2: model.RatingChangeEvent{
				MatchID:       res.MatchID,
				PlayerID:      res.Player2ID,
				OldRating:     p2.Rating,
				NewRating:     new2,
				MatchesPlayed: up2.MatchesPlayed,
				Timestamp:     now,
			},
			AppliedAt: now,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrRetriesExhausted, res.MatchID)
}

// markApplied promotes the reservation to a permanent applied record.
// The ratings are committed by the time this runs, so transient guard
// failures are retried while the reservation still fences out
// resubmissions; giving up early would let the TTL expire and the match
// be applied again.
func (c *Coordinator) markApplied(ctx context.Context, matchID string, outcome model.MatchOutcome) error {
	var err error
	for attempt := 0; attempt <= markAppliedRetries; attempt++ {
		err = c.guard.MarkApplied(ctx, matchID, outcome)
		if err == nil || errors.Is(err, dedupe.ErrAlreadyApplied) {
			return nil
		}
		if attempt == markAppliedRetries {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(markRetryBackoff):
		}
	}
	return err
}

func (c *Coordinator) releaseReservation(ctx context.Context, matchID string) {
	if err := c.guard.Release(ctx, matchID); err != nil {
		c.logger.Warn(ctx, "release reservation failed",
			logger.String("matchID", matchID),
			logger.Error(err),
		)
	}
}

func (c *Coordinator) validate(res model.MatchResult) *ValidationError {
	switch {
	case res.MatchID == "":
		return &ValidationError{Field: "matchId", Reason: "must not be empty"}
	case res.Player1ID == "":
		return &ValidationError{Field: "player1Id", Reason: "must not be empty"}
	case res.Player2ID == "":
		return &ValidationError{Field: "player2Id", Reason: "must not be empty"}
	case res.Player1ID == res.Player2ID:
		return &ValidationError{Field: "player2Id", Reason: "must differ from player1Id"}
	case !res.Outcome.Valid(c.allowDraws):
		return &ValidationError{Field: "winner", Reason: "unrecognized outcome"}
	}
	return nil
}
