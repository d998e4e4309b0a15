package dedupe

import "errors"

// Sentinel kinds for guard errors.
var (
	ErrAlreadyApplied = errors.New("match already applied")
	ErrInFlight       = errors.New("match reservation in flight")
)
