// Package model contains domain models passed between layers.
package model

import "time"

// Outcome identifies the winner of a match as submitted on the wire.
type Outcome int

// Wire values for the winner field of a match submission.
const (
	Player1Win Outcome = 0
	Player2Win Outcome = 1
	Draw       Outcome = 2
)

// Valid reports whether o is a recognized outcome. Draws are only valid
// when the deployment enables them.
func (o Outcome) Valid(allowDraws bool) bool {
	switch o {
	case Player1Win, Player2Win:
		return true
	case Draw:
		return allowDraws
	default:
		return false
	}
}

// MatchResult is a completed 1v1 match submitted for rating application.
// MatchID is globally unique and used only for idempotency.
type MatchResult struct {
	MatchID   string
	Player1ID string
	Player2ID string
	Outcome   Outcome
}

// PlayerRating is the durable per-player rating row. Version drives
// optimistic concurrency in the store: Version 0 means the row has never
// been persisted and carries the configured default rating.
type PlayerRating struct {
	PlayerID      string
	Rating        float64
	MatchesPlayed int
	Version       int64
	UpdatedAt     time.Time
}

// RatingChangeEvent records one player's rating mutation from one applied
// match. Produced exactly once per player per applied match; consumed by
// the broadcast hub and never persisted by the hub itself.
type RatingChangeEvent struct {
	MatchID       string    `json:"matchId"`
	PlayerID      string    `json:"playerId"`
	OldRating     float64   `json:"oldRating"`
	NewRating     float64   `json:"newRating"`
	MatchesPlayed int       `json:"matchesPlayed"`
	Timestamp     time.Time `json:"timestamp"`
}

// MatchOutcome is the committed result of applying a match: both players'
// change events. The idempotency guard retains it so a replayed submission
// can be answered with the original result instead of a second mutation.
type MatchOutcome struct {
	MatchID   string            `json:"matchId"`
	Player1   RatingChangeEvent `json:"player1"`
	Player2   RatingChangeEvent `json:"player2"`
	AppliedAt time.Time         `json:"appliedAt"`
}
