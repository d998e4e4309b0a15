package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/pkg/metrics"
)

// Redis key layout: one hash per player plus a sorted set mirroring
// ratings for leaderboard reads.
const (
	redisPlayerPrefix = "duelo:player:"
	redisLadderKey    = "duelo:ladder"
)

// RedisStore implements Store on Redis. CommitPair runs under WATCH on
// both player hashes so a concurrent commit to either player fails the
// transaction, which surfaces as ErrConflict.
type RedisStore struct {
	client        *redis.Client
	defaultRating float64
}

// RedisStoreOption applies a configuration option to the RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisDefaultRating sets the rating returned for unknown players.
func WithRedisDefaultRating(r float64) RedisStoreOption {
	return func(s *RedisStore) {
		if r > 0 {
			s.defaultRating = r
		}
	}
}

// NewRedisStore creates a rating store backed by the given Redis client.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:        client,
		defaultRating: defaultInitialRating,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RedisStore) key(playerID string) string {
	return redisPlayerPrefix + playerID
}

// Get returns the stored or default rating row for playerID.
func (s *RedisStore) Get(ctx context.Context, playerID string) (model.PlayerRating, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	fields, err := s.client.HGetAll(ctx, s.key(playerID)).Result()
	if err != nil {
		return model.PlayerRating{}, fmt.Errorf("store get: %w", err)
	}
	if len(fields) == 0 {
		return model.PlayerRating{PlayerID: playerID, Rating: s.defaultRating}, nil
	}
	return parsePlayerHash(playerID, fields)
}

// CommitPair writes both rows under WATCH on both player keys.
func (s *RedisStore) CommitPair(ctx context.Context, a, b model.PlayerRating) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreCommitLatency(float64(time.Since(start).Milliseconds()))
	}()

	keyA, keyB := s.key(a.PlayerID), s.key(b.PlayerID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		va, err := hashVersion(ctx, tx, keyA)
		if err != nil {
			return err
		}
		vb, err := hashVersion(ctx, tx, keyB)
		if err != nil {
			return err
		}
		if va != a.Version || vb != b.Version {
			return ErrConflict
		}

		now := time.Now()
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writePlayerHash(ctx, pipe, keyA, a, now)
			writePlayerHash(ctx, pipe, keyB, b, now)
			pipe.ZAdd(ctx, redisLadderKey,
				redis.Z{Score: a.Rating, Member: a.PlayerID},
				redis.Z{Score: b.Rating, Member: b.PlayerID},
			)
			return nil
		})
		return err
	}, keyA, keyB)

	if errors.Is(err, redis.TxFailedErr) {
		metrics.RecordCommitConflict()
		return ErrConflict
	}
	if errors.Is(err, ErrConflict) {
		metrics.RecordCommitConflict()
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("store commit: %w", err)
	}
	return nil
}

// TopN reads the ladder sorted set, then fills in match counts.
func (s *RedisStore) TopN(ctx context.Context, n int) ([]model.PlayerRating, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	members, err := s.client.ZRevRangeWithScores(ctx, redisLadderKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("store topn: %w", err)
	}

	rows := make([]model.PlayerRating, 0, len(members))
	for _, z := range members {
		playerID, _ := z.Member.(string)
		row, err := s.Get(ctx, playerID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Count returns the number of players on the ladder.
func (s *RedisStore) Count(ctx context.Context) int {
	n, err := s.client.ZCard(ctx, redisLadderKey).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// hashVersion reads the version field of a player hash, 0 if absent.
func hashVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	v, err := tx.HGet(ctx, key, "version").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store read version: %w", err)
	}
	return v, nil
}

// writePlayerHash queues the field writes for one committed row.
func writePlayerHash(ctx context.Context, pipe redis.Pipeliner, key string, row model.PlayerRating, now time.Time) {
	pipe.HSet(ctx, key,
		"rating", strconv.FormatFloat(row.Rating, 'f', -1, 64),
		"matches", strconv.Itoa(row.MatchesPlayed),
		"version", strconv.FormatInt(row.Version+1, 10),
		"updated_at", now.Format(time.RFC3339Nano),
	)
}

// parsePlayerHash converts the stored hash fields back into a rating row.
func parsePlayerHash(playerID string, fields map[string]string) (model.PlayerRating, error) {
	row := model.PlayerRating{PlayerID: playerID}

	var err error
	if row.Rating, err = strconv.ParseFloat(fields["rating"], 64); err != nil {
		return model.PlayerRating{}, fmt.Errorf("store parse rating: %w", err)
	}
	if row.MatchesPlayed, err = strconv.Atoi(fields["matches"]); err != nil {
		return model.PlayerRating{}, fmt.Errorf("store parse matches: %w", err)
	}
	if row.Version, err = strconv.ParseInt(fields["version"], 10, 64); err != nil {
		return model.PlayerRating{}, fmt.Errorf("store parse version: %w", err)
	}
	if ts := fields["updated_at"]; ts != "" {
		if row.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return model.PlayerRating{}, fmt.Errorf("store parse updated_at: %w", err)
		}
	}
	return row, nil
}
