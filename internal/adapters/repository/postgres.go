package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/pkg/metrics"
)

// PostgresStore implements Store on a relational table with a version
// column for optimistic concurrency.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS player_ratings (
//	    player_id      TEXT PRIMARY KEY,
//	    rating         DOUBLE PRECISION NOT NULL,
//	    matches_played INT NOT NULL,
//	    version        BIGINT NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db            *sql.DB
	defaultRating float64
}

// PostgresStoreOption applies a configuration option to the PostgresStore.
type PostgresStoreOption func(*PostgresStore)

// WithPostgresDefaultRating sets the rating returned for unknown players.
func WithPostgresDefaultRating(r float64) PostgresStoreOption {
	return func(s *PostgresStore) {
		if r > 0 {
			s.defaultRating = r
		}
	}
}

// NewPostgresStore creates a rating store backed by the given database handle.
func NewPostgresStore(db *sql.DB, opts ...PostgresStoreOption) *PostgresStore {
	s := &PostgresStore{
		db:            db,
		defaultRating: defaultInitialRating,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns the stored or default rating row for playerID.
func (s *PostgresStore) Get(ctx context.Context, playerID string) (model.PlayerRating, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	row := model.PlayerRating{PlayerID: playerID}
	err := s.db.QueryRowContext(ctx, `
		SELECT rating, matches_played, version, updated_at
		FROM player_ratings
		WHERE player_id = $1
	`, playerID).Scan(&row.Rating, &row.MatchesPlayed, &row.Version, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlayerRating{PlayerID: playerID, Rating: s.defaultRating}, nil
	}
	if err != nil {
		return model.PlayerRating{}, fmt.Errorf("store get: %w", err)
	}
	return row, nil
}

// CommitPair writes both rows in one transaction; a version mismatch on
// either row rolls the whole transaction back.
func (s *PostgresStore) CommitPair(ctx context.Context, a, b model.PlayerRating) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreCommitLatency(float64(time.Since(start).Milliseconds()))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, row := range []model.PlayerRating{a, b} {
		if err := commitRow(ctx, tx, row); err != nil {
			if errors.Is(err, ErrConflict) {
				metrics.RecordCommitConflict()
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store commit: %w", err)
	}
	return nil
}

// commitRow performs the version-checked write for one player.
func commitRow(ctx context.Context, tx *sql.Tx, row model.PlayerRating) error {
	if row.Version == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO player_ratings (player_id, rating, matches_played, version, updated_at)
			VALUES ($1, $2, $3, 1, now())
			ON CONFLICT (player_id) DO NOTHING
		`, row.PlayerID, row.Rating, row.MatchesPlayed)
		if err != nil {
			return fmt.Errorf("store insert: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return ErrConflict
		}
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE player_ratings
		SET rating = $2, matches_played = $3, version = version + 1, updated_at = now()
		WHERE player_id = $1 AND version = $4
	`, row.PlayerID, row.Rating, row.MatchesPlayed, row.Version)
	if err != nil {
		return fmt.Errorf("store update: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return ErrConflict
	}
	return nil
}

// TopN returns up to n players ordered by rating descending.
func (s *PostgresStore) TopN(ctx context.Context, n int) ([]model.PlayerRating, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, rating, matches_played, version, updated_at
		FROM player_ratings
		ORDER BY rating DESC, player_id ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("store topn: %w", err)
	}
	defer rows.Close()

	var out []model.PlayerRating
	for rows.Next() {
		var row model.PlayerRating
		if err := rows.Scan(&row.PlayerID, &row.Rating, &row.MatchesPlayed, &row.Version, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Count returns the number of persisted rating rows.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM player_ratings`).Scan(&n); err != nil {
		return 0
	}
	return n
}
