package rating

// Option applies a configuration option to the EloEngine.
type Option func(*EloEngine)

// WithKFactor sets the K factor applied to both participants of a match.
func WithKFactor(k float64) Option {
	return func(e *EloEngine) {
		if k > 0 {
			e.kFactor = k
		}
	}
}

// WithInitialRating sets the rating assigned to unseen players.
func WithInitialRating(r float64) Option {
	return func(e *EloEngine) {
		if r > 0 {
			e.initialRating = r
		}
	}
}
