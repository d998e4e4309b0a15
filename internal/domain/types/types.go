// Package types contains common types used across the application
package types

import "time"

// RatingView is the read shape returned by rating and leaderboard queries.
type RatingView struct {
	PlayerID      string    `json:"playerId"`
	Rating        float64   `json:"rating"`
	MatchesPlayed int       `json:"matchesPlayed"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
