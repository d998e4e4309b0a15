package repository

import "errors"

// Sentinel kinds for rating store errors.
var (
	ErrConflict     = errors.New("rating version conflict")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
