package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/pkg/metrics"
)

// MemStore implements Store with a mutex-protected map. The mutex makes
// CommitPair's version check and double write a single atomic step.
type MemStore struct {
	mu            sync.RWMutex
	rows          map[string]model.PlayerRating
	defaultRating float64
	now           func() time.Time
}

// NewMemStore creates an in-memory rating store with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		defaultRating: defaultInitialRating,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.rows = make(map[string]model.PlayerRating)

	return s
}

// Get returns the stored or default rating row for playerID.
func (s *MemStore) Get(ctx context.Context, playerID string) (model.PlayerRating, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if row, ok := s.rows[playerID]; ok {
		return row, nil
	}
	return model.PlayerRating{PlayerID: playerID, Rating: s.defaultRating}, nil
}

// CommitPair writes both rows if neither has been modified since read.
func (s *MemStore) CommitPair(ctx context.Context, a, b model.PlayerRating) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreCommitLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version(a.PlayerID) != a.Version || s.version(b.PlayerID) != b.Version {
		metrics.RecordCommitConflict()
		return ErrConflict
	}

	now := s.now()
	a.Version++
	a.UpdatedAt = now
	b.Version++
	b.UpdatedAt = now
	s.rows[a.PlayerID] = a
	s.rows[b.PlayerID] = b

	metrics.UpdateTotalPlayers(len(s.rows))
	return nil
}

// version returns the stored version for playerID, 0 if absent.
// Callers must hold s.mu.
func (s *MemStore) version(playerID string) int64 {
	if row, ok := s.rows[playerID]; ok {
		return row.Version
	}
	return 0
}

// TopN returns up to n players ordered by rating descending.
func (s *MemStore) TopN(ctx context.Context, n int) ([]model.PlayerRating, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	rows := make([]model.PlayerRating, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rating != rows[j].Rating {
			return rows[i].Rating > rows[j].Rating
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})

	if n < len(rows) {
		rows = rows[:n]
	}
	return rows, nil
}

// Count returns the number of persisted rating rows.
func (s *MemStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
