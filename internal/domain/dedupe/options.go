package dedupe

import "time"

// defaultReservationTTL bounds how long a reservation can sit unapplied
// before another submitter may take it over.
const defaultReservationTTL = 30 * time.Second

// Option applies a configuration option to the in-memory guard.
type Option func(*inMemoryGuard)

// WithReservationTTL sets the expiry for unapplied reservations.
func WithReservationTTL(ttl time.Duration) Option {
	return func(g *inMemoryGuard) {
		if ttl > 0 {
			g.reservationTTL = ttl
		}
	}
}
