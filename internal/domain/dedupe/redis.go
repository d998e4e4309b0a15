package dedupe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/duelo/internal/domain/model"
)

// pendingMarker is the value stored while a reservation is live. Applied
// records replace it with the serialized outcome and no TTL.
const pendingMarker = "__pending__"

// releaseScript deletes the key only while it still holds a pending
// reservation, so a concurrent MarkApplied cannot be undone by a stale
// Release.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements Guard on Redis. SET NX with a TTL is the atomic
// insert-if-absent; reservation expiry falls out of the key TTL.
type RedisGuard struct {
	client         *redis.Client
	keyPrefix      string
	reservationTTL time.Duration
}

// RedisOption applies a configuration option to the RedisGuard.
type RedisOption func(*RedisGuard)

// WithRedisKeyPrefix sets the key namespace for guard records.
func WithRedisKeyPrefix(prefix string) RedisOption {
	return func(g *RedisGuard) {
		if prefix != "" {
			g.keyPrefix = prefix
		}
	}
}

// WithRedisReservationTTL sets the expiry for unapplied reservations.
func WithRedisReservationTTL(ttl time.Duration) RedisOption {
	return func(g *RedisGuard) {
		if ttl > 0 {
			g.reservationTTL = ttl
		}
	}
}

// NewRedisGuard creates a guard backed by the given Redis client.
func NewRedisGuard(client *redis.Client, opts ...RedisOption) *RedisGuard {
	g := &RedisGuard{
		client:         client,
		keyPrefix:      "duelo:match:",
		reservationTTL: defaultReservationTTL,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *RedisGuard) key(matchID string) string {
	return g.keyPrefix + matchID
}

// Reserve claims matchID via SET NX.
func (g *RedisGuard) Reserve(ctx context.Context, matchID string) error {
	key := g.key(matchID)

	// Two attempts cover the window where a pending key expires between
	// the failed SET NX and the GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := g.client.SetNX(ctx, key, pendingMarker, g.reservationTTL).Result()
		if err != nil {
			return fmt.Errorf("guard reserve: %w", err)
		}
		if ok {
			return nil
		}

		val, err := g.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired under us; retry the SET NX
		}
		if err != nil {
			return fmt.Errorf("guard reserve read: %w", err)
		}
		if val == pendingMarker {
			return ErrInFlight
		}
		return ErrAlreadyApplied
	}

	return ErrInFlight
}

// MarkApplied stores the outcome permanently.
func (g *RedisGuard) MarkApplied(ctx context.Context, matchID string, outcome model.MatchOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("guard encode outcome: %w", err)
	}
	if err := g.client.Set(ctx, g.key(matchID), payload, 0).Err(); err != nil {
		return fmt.Errorf("guard mark applied: %w", err)
	}
	return nil
}

// Release deletes a still-pending reservation.
func (g *RedisGuard) Release(ctx context.Context, matchID string) error {
	if err := releaseScript.Run(ctx, g.client, []string{g.key(matchID)}, pendingMarker).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("guard release: %w", err)
	}
	return nil
}

// Applied returns the stored outcome, if committed.
func (g *RedisGuard) Applied(ctx context.Context, matchID string) (*model.MatchOutcome, bool, error) {
	val, err := g.client.Get(ctx, g.key(matchID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("guard applied read: %w", err)
	}
	if val == pendingMarker {
		return nil, false, nil
	}

	var out model.MatchOutcome
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false, fmt.Errorf("guard decode outcome: %w", err)
	}
	return &out, true, nil
}
