// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"

	"github.com/okian/duelo/internal/adapters/repository"
	"github.com/okian/duelo/internal/adapters/ws"
	"github.com/okian/duelo/internal/config"
	"github.com/okian/duelo/internal/domain/dedupe"
	"github.com/okian/duelo/internal/domain/match"
	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/internal/domain/rating"
	"github.com/okian/duelo/internal/domain/types"
	"github.com/okian/duelo/pkg/logger"
	"github.com/okian/duelo/pkg/metrics"
)

// Service wires the rating pipeline: dedupe guard, rating store, Elo
// engine, match coordinator and broadcast hub. It implements the API
// dependency bundle.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	guard       dedupe.Guard
	engine      rating.Engine
	coordinator *match.Coordinator
	hub         *ws.Hub

	// Backend handles, owned when the matching store is selected
	redisClient *redis.Client
	postgresDB  *sql.DB

	cfg *config.Config

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the full process configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore overrides the persistence backend, mainly for tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithGuard overrides the idempotency guard, mainly for tests.
func WithGuard(guard dedupe.Guard) Option {
	return func(s *Service) {
		s.guard = guard
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting rating service...")

	s.engine = rating.NewEloEngine(
		rating.WithKFactor(s.cfg.KFactor),
		rating.WithInitialRating(s.cfg.DefaultRating),
	)

	if err := s.buildBackends(ctx); err != nil {
		return err
	}

	s.hub = ws.NewHub(
		ws.WithQueueCapacity(s.cfg.EventQueueSize),
		ws.WithSubscriberBuffer(s.cfg.SubscriberBuffer),
		ws.WithWorkerCount(s.cfg.WorkerCount),
	)
	s.hub.Start(ctx)

	s.coordinator = match.NewCoordinator(s.guard, s.store, s.engine,
		match.WithPublisher(s.hub),
		match.WithLockTimeout(time.Duration(s.cfg.LockTimeoutMS)*time.Millisecond),
		match.WithCommitRetries(s.cfg.CommitRetries),
		match.WithAllowDraws(s.cfg.AllowDraws),
	)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.String("store", s.cfg.Store),
		logger.Float64("kFactor", s.cfg.KFactor),
		logger.Float64("defaultRating", s.cfg.DefaultRating),
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("eventQueueSize", s.cfg.EventQueueSize),
	)

	return nil
}

// buildBackends selects the store and guard implementations from the
// configured backend. Explicitly injected components win. Stores seed
// unknown players at the engine's initial rating so reads and applies
// agree on the baseline.
func (s *Service) buildBackends(ctx context.Context) error {
	if s.store != nil && s.guard != nil {
		return nil
	}

	initial := s.engine.InitialRating()

	switch s.cfg.Store {
	case config.StoreMemory:
		if s.store == nil {
			s.store = repository.NewMemStore(
				repository.WithDefaultRating(initial),
			)
		}
		if s.guard == nil {
			s.guard = dedupe.NewInMemoryGuard(
				dedupe.WithReservationTTL(time.Duration(s.cfg.ReservationTTLMS) * time.Millisecond),
			)
		}

	case config.StoreRedis:
		s.redisClient = redis.NewClient(&redis.Options{Addr: s.cfg.RedisAddr})
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		if s.store == nil {
			s.store = repository.NewRedisStore(s.redisClient,
				repository.WithRedisDefaultRating(initial),
			)
		}
		if s.guard == nil {
			s.guard = dedupe.NewRedisGuard(s.redisClient,
				dedupe.WithRedisReservationTTL(time.Duration(s.cfg.ReservationTTLMS)*time.Millisecond),
			)
		}

	case config.StorePostgres:
		db, err := sql.Open("postgres", s.cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		s.postgresDB = db
		if s.store == nil {
			s.store = repository.NewPostgresStore(db,
				repository.WithPostgresDefaultRating(initial),
			)
		}
		if s.guard == nil {
			s.guard = dedupe.NewPostgresGuard(db,
				dedupe.WithPostgresReservationTTL(time.Duration(s.cfg.ReservationTTLMS)*time.Millisecond),
			)
		}

	default:
		return fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, s.cfg.Store)
	}

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")

	if s.hub != nil {
		s.hub.Stop()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.postgresDB != nil {
		_ = s.postgresDB.Close()
	}

	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

// Apply processes a submitted match result through the coordinator.
func (s *Service) Apply(ctx context.Context, res model.MatchResult) (*model.MatchOutcome, bool, error) {
	return s.coordinator.Apply(ctx, res)
}

// Rating returns the current rating view for a player. Unknown players
// get the default rating with zero matches played.
func (s *Service) Rating(ctx context.Context, playerID string) (types.RatingView, error) {
	row, err := s.store.Get(ctx, playerID)
	if err != nil {
		return types.RatingView{}, err
	}
	return toView(row), nil
}

// TopN returns up to n players ordered by rating descending.
func (s *Service) TopN(ctx context.Context, n int) ([]types.RatingView, error) {
	rows, err := s.store.TopN(ctx, n)
	if err != nil {
		return nil, err
	}

	views := make([]types.RatingView, len(rows))
	for i, row := range rows {
		views[i] = toView(row)
	}
	return views, nil
}

// ServeWS hands a websocket upgrade to the broadcast hub.
func (s *Service) ServeWS(w http.ResponseWriter, r *http.Request) error {
	return s.hub.ServeWS(w, r)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"store":         s.cfg.Store,
		"kFactor":       s.cfg.KFactor,
		"defaultRating": s.cfg.DefaultRating,
		"workerCount":   s.cfg.WorkerCount,
	}

	if s.started {
		totalPlayers := s.store.Count(ctx)
		stats["totalPlayers"] = totalPlayers
		stats["subscribers"] = s.hub.SubscriberCount()
		metrics.UpdateTotalPlayers(totalPlayers)

		if sized, ok := s.guard.(interface{ Size() int64 }); ok {
			stats["trackedMatches"] = sized.Size()
		}
	}

	return stats
}

func toView(row model.PlayerRating) types.RatingView {
	return types.RatingView{
		PlayerID:      row.PlayerID,
		Rating:        row.Rating,
		MatchesPlayed: row.MatchesPlayed,
		UpdatedAt:     row.UpdatedAt,
	}
}
