// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Store backend names accepted in Config.Store.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// KFactor sets the rating adjustment step per match.
	KFactor float64 `koanf:"k_factor"`

	// DefaultRating is the rating assigned to players before their
	// first match.
	DefaultRating float64 `koanf:"default_rating"`

	// AllowDraws accepts draw outcomes in submitted results.
	AllowDraws bool `koanf:"allow_draws"`

	// Store selects the persistence backend: memory, redis or postgres.
	Store string `koanf:"store"`

	// RedisAddr is the redis host:port when Store is redis.
	RedisAddr string `koanf:"redis_addr"`

	// PostgresDSN is the connection string when Store is postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// LockTimeoutMS bounds how long a match waits for player locks.
	LockTimeoutMS int `koanf:"lock_timeout_ms"`

	// CommitRetries sets how many lost version checks are retried.
	CommitRetries int `koanf:"commit_retries"`

	// ReservationTTLMS bounds how long an in-flight match may hold its
	// dedupe reservation before another submission may take over.
	ReservationTTLMS int `koanf:"reservation_ttl_ms"`

	// EventQueueSize bounds the in-memory rating-change event queue.
	EventQueueSize int `koanf:"event_queue_size"`

	// SubscriberBuffer sets the per-subscriber send buffer size.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// WorkerCount sets the number of event delivery workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		KFactor:             32,
		DefaultRating:       1500,
		AllowDraws:          false,
		Store:               StoreMemory,
		RedisAddr:           "localhost:6379",
		PostgresDSN:         "",
		LockTimeoutMS:       2000,
		CommitRetries:       3,
		ReservationTTLMS:    30_000,
		EventQueueSize:      65_536,
		SubscriberBuffer:    64,
		WorkerCount:         runtime.NumCPU(),
		MaxLeaderboardLimit: 100,
	}
}
