package dedupe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/duelo/internal/domain/model"
)

// PostgresGuard implements Guard on a relational table whose primary key
// is the match ID. The conditional INSERT is the atomic insert-if-absent;
// takeover of expired reservations is a conditional UPDATE.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS applied_matches (
//	    match_id    TEXT PRIMARY KEY,
//	    state       TEXT NOT NULL,
//	    reserved_at TIMESTAMPTZ NOT NULL,
//	    applied_at  TIMESTAMPTZ,
//	    outcome     JSONB
//	);
type PostgresGuard struct {
	db             *sql.DB
	reservationTTL time.Duration
}

// PostgresGuardOption applies a configuration option to the PostgresGuard.
type PostgresGuardOption func(*PostgresGuard)

// WithPostgresReservationTTL sets the expiry for unapplied reservations.
func WithPostgresReservationTTL(ttl time.Duration) PostgresGuardOption {
	return func(g *PostgresGuard) {
		if ttl > 0 {
			g.reservationTTL = ttl
		}
	}
}

// NewPostgresGuard creates a guard backed by the given database handle.
func NewPostgresGuard(db *sql.DB, opts ...PostgresGuardOption) *PostgresGuard {
	g := &PostgresGuard{
		db:             db,
		reservationTTL: defaultReservationTTL,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Reserve claims matchID via INSERT ... ON CONFLICT DO NOTHING.
func (g *PostgresGuard) Reserve(ctx context.Context, matchID string) error {
	res, err := g.db.ExecContext(ctx, `
		INSERT INTO applied_matches (match_id, state, reserved_at)
		VALUES ($1, 'reserved', now())
		ON CONFLICT (match_id) DO NOTHING
	`, matchID)
	if err != nil {
		return fmt.Errorf("guard reserve: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}

	var state string
	err = g.db.QueryRowContext(ctx,
		`SELECT state FROM applied_matches WHERE match_id = $1`, matchID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		// Released between the INSERT and the SELECT; let the caller retry.
		return ErrInFlight
	}
	if err != nil {
		return fmt.Errorf("guard reserve read: %w", err)
	}
	if state == "applied" {
		return ErrAlreadyApplied
	}

	// Take over the reservation only if it has expired.
	res, err = g.db.ExecContext(ctx, `
		UPDATE applied_matches
		SET reserved_at = now()
		WHERE match_id = $1
		  AND state = 'reserved'
		  AND reserved_at < now() - ($2 * interval '1 millisecond')
	`, matchID, g.reservationTTL.Milliseconds())
	if err != nil {
		return fmt.Errorf("guard reserve takeover: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}
	return ErrInFlight
}

// MarkApplied promotes the reservation and stores the outcome.
func (g *PostgresGuard) MarkApplied(ctx context.Context, matchID string, outcome model.MatchOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("guard encode outcome: %w", err)
	}
	_, err = g.db.ExecContext(ctx, `
		UPDATE applied_matches
		SET state = 'applied', applied_at = now(), outcome = $2
		WHERE match_id = $1
	`, matchID, payload)
	if err != nil {
		return fmt.Errorf("guard mark applied: %w", err)
	}
	return nil
}

// Release deletes a still-reserved row.
func (g *PostgresGuard) Release(ctx context.Context, matchID string) error {
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM applied_matches WHERE match_id = $1 AND state = 'reserved'`, matchID)
	if err != nil {
		return fmt.Errorf("guard release: %w", err)
	}
	return nil
}

// Applied returns the stored outcome, if committed.
func (g *PostgresGuard) Applied(ctx context.Context, matchID string) (*model.MatchOutcome, bool, error) {
	var payload []byte
	err := g.db.QueryRowContext(ctx,
		`SELECT outcome FROM applied_matches WHERE match_id = $1 AND state = 'applied'`, matchID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("guard applied read: %w", err)
	}

	var out model.MatchOutcome
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, false, fmt.Errorf("guard decode outcome: %w", err)
	}
	return &out, true, nil
}
