package match

import (
	"errors"
	"fmt"
)

// Sentinel errors for match application.
var (
	// ErrLockTimeout means a player lock could not be taken in time.
	ErrLockTimeout = errors.New("player lock acquisition timed out")

	// ErrRetriesExhausted means every commit attempt lost its version
	// check. The caller may resubmit the match.
	ErrRetriesExhausted = errors.New("commit retries exhausted")
)

// ValidationError describes a rejected match result. It names the field
// at fault so the API layer can surface it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid match result: %s %s", e.Field, e.Reason)
}
