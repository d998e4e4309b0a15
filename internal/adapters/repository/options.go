package repository

// defaultInitialRating seeds rows for players with no applied match yet.
const defaultInitialRating = 1500

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithDefaultRating sets the rating returned for unknown players.
func WithDefaultRating(r float64) Option {
	return func(s *MemStore) {
		if r > 0 {
			s.defaultRating = r
		}
	}
}
