// Package rating implements the Elo-style rating engine.
//
// The engine is a pure function of its inputs: no I/O, no clock, no
// randomness. Determinism is what makes idempotent replay detection safe
// to verify in tests.
package rating

import (
	"math"

	"github.com/okian/duelo/internal/domain/model"
)

// Default engine constants.
const (
	defaultKFactor       = 32
	defaultInitialRating = 1500
	eloDivisor           = 400
)

// Engine computes new ratings for both participants of a single match.
type Engine interface {
	// Apply returns the post-match ratings for players A and B.
	// The same K factor is used for both sides so the update is zero-sum.
	Apply(ratingA, ratingB float64, outcome model.Outcome) (newA, newB float64)

	// InitialRating returns the rating assigned to a player before their
	// first applied match.
	InitialRating() float64
}

// EloEngine implements Engine with the classic Elo expected-score formula.
type EloEngine struct {
	kFactor       float64
	initialRating float64
}

// NewEloEngine creates an Elo engine with configuration options.
func NewEloEngine(opts ...Option) *EloEngine {
	e := &EloEngine{
		kFactor:       defaultKFactor,
		initialRating: defaultInitialRating,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// expected returns the expected score of a player rated ra against rb.
func expected(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (rb-ra)/eloDivisor))
}

// Apply computes both new ratings from the outcome.
func (e *EloEngine) Apply(ratingA, ratingB float64, outcome model.Outcome) (float64, float64) {
	var scoreA float64
	switch outcome {
	case model.Player1Win:
		scoreA = 1.0
	case model.Player2Win:
		scoreA = 0.0
	case model.Draw:
		scoreA = 0.5
	}
	scoreB := 1.0 - scoreA

	expA := expected(ratingA, ratingB)
	expB := 1.0 - expA

	newA := ratingA + e.kFactor*(scoreA-expA)
	newB := ratingB + e.kFactor*(scoreB-expB)
	return newA, newB
}

// InitialRating returns the configured starting rating.
func (e *EloEngine) InitialRating() float64 {
	return e.initialRating
}
