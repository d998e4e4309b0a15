// Package repository defines the rating store interface and errors.
package repository

import (
	"context"

	"github.com/okian/duelo/internal/domain/model"
)

// Store provides durable read/write access to player ratings. It is the
// single source of truth for current ratings and match counts.
type Store interface {
	// Get returns the current rating row for a player. Unknown players get
	// a default row (configured initial rating, zero matches, Version 0);
	// Get never fails for an unknown player.
	Get(ctx context.Context, playerID string) (model.PlayerRating, error)

	// CommitPair writes both players' new ratings as a single atomic unit.
	// The Version on each row must equal the stored version at read time;
	// any mismatch fails the whole commit with ErrConflict and neither row
	// is written. On success both rows are persisted with Version+1.
	CommitPair(ctx context.Context, a, b model.PlayerRating) error

	// TopN returns up to n players ordered by rating descending.
	TopN(ctx context.Context, n int) ([]model.PlayerRating, error)

	// Count returns the number of players with a persisted rating.
	Count(ctx context.Context) int
}
