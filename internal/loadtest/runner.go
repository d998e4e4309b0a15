package loadtest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/duelo/pkg/logger"
)

// conservationTolerance bounds the accepted drift when checking that
// rating points are conserved across the whole pool. Loose enough to
// absorb float64 accumulation over many matches.
const conservationTolerance = 1e-3

// settleDelay gives the broadcast pipeline a moment to drain before the
// final reads.
const settleDelay = 2 * time.Second

// Run executes the complete load test: submit distinct matches, replay a
// sample of them, then read back the leaderboard and verify invariants.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting rating load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("matches", cfg.NumMatches),
		logger.Int("players", cfg.NumPlayers),
		logger.Int("workers", cfg.Workers),
		logger.Float64("duplicateRatio", cfg.DuplicateRatio),
	)

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.checkHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	var wsCancel context.CancelFunc
	if cfg.Subscribe {
		var wsCtx context.Context
		wsCtx, wsCancel = context.WithCancel(ctx)
		defer wsCancel()
		go func() {
			if err := subscribeEvents(wsCtx, cfg.BaseURL, stats); err != nil {
				log.Warn(ctx, "event subscription failed", logger.Error(err))
			}
		}()
	}

	matches := generateMatches(cfg, stats)
	originals := matches[:cfg.NumMatches]
	replays := matches[cfg.NumMatches:]

	// Originals first so replays deterministically hit applied records
	// rather than racing their own first submission.
	if err := submitAll(ctx, cfg, c, originals, stats); err != nil {
		return fmt.Errorf("match submission failed: %w", err)
	}
	if err := submitAll(ctx, cfg, c, replays, stats); err != nil {
		return fmt.Errorf("replay submission failed: %w", err)
	}

	time.Sleep(settleDelay)

	entries, err := c.getLeaderboard(ctx, cfg.TopN)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	if err := verify(ctx, cfg, entries, stats); err != nil {
		return err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats, len(entries))

	log.Info(ctx, "load test completed successfully")
	return nil
}

// submitAll posts every submission using cfg.Workers concurrent senders.
func submitAll(ctx context.Context, cfg *Config, c *client, subs []submission, stats *Stats) error {
	if len(subs) == 0 {
		return nil
	}

	work := make(chan submission)
	errCh := make(chan error, cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range work {
				duplicate, err := c.postResult(ctx, sub)
				stats.MatchesSubmitted.Add(1)
				switch {
				case err != nil:
					stats.MatchesFailed.Add(1)
					if cfg.Verbose {
						logger.Get().Warn(ctx, "submission failed",
							logger.String("matchID", sub.MatchID),
							logger.Error(err),
						)
					}
				case duplicate:
					stats.MatchesDuplicate.Add(1)
					if !sub.duplicate {
						errCh <- fmt.Errorf("match %s flagged duplicate on first submission", sub.MatchID)
						return
					}
				default:
					stats.MatchesApplied.Add(1)
					if sub.duplicate {
						errCh <- fmt.Errorf("replayed match %s was applied twice", sub.MatchID)
						return
					}
				}
			}
		}()
	}

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return ctx.Err()
		case work <- sub:
		}
	}
	close(work)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// verify checks the invariants visible from the outside: every replayed
// match answered as a duplicate, and rating points are conserved when
// the leaderboard covers the whole pool (no draws, equal stakes both
// ways, so gains and losses must cancel out around the default rating).
func verify(ctx context.Context, cfg *Config, entries []leaderboardEntry, stats *Stats) error {
	log := logger.Get()

	if failed := stats.MatchesFailed.Load(); failed > 0 {
		log.Warn(ctx, "some submissions failed", logger.Int64("failed", failed))
	}

	if len(entries) < cfg.NumPlayers {
		log.Warn(ctx, "leaderboard smaller than player pool; skipping conservation check",
			logger.Int("entries", len(entries)),
			logger.Int("players", cfg.NumPlayers),
		)
		return nil
	}

	var sum float64
	var totalMatches int
	for _, e := range entries {
		sum += e.Rating
		totalMatches += e.MatchesPlayed
	}

	// Each applied match counts once per side.
	applied := stats.MatchesApplied.Load()
	if int64(totalMatches) != 2*applied {
		return fmt.Errorf("matches played mismatch: leaderboard says %d sides, applied %d matches", totalMatches, applied)
	}

	// Without draws every match moves equal points between two players,
	// so the mean rating must stay pinned at the default.
	mean := sum / float64(len(entries))
	if drift := math.Abs(mean - cfg.DefaultRating); drift > conservationTolerance {
		return fmt.Errorf("rating conservation drift: mean %g vs default %g", mean, cfg.DefaultRating)
	}

	log.Info(ctx, "verification passed",
		logger.Int("players", len(entries)),
		logger.Float64("meanRating", mean),
		logger.Int("totalMatchSides", totalMatches),
	)
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats, leaderboardEntries int) {
	var matchesPerSecond float64
	if stats.Duration > 0 {
		matchesPerSecond = float64(stats.MatchesSubmitted.Load()) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("matchesGenerated", stats.MatchesGenerated),
		logger.Int64("matchesSubmitted", stats.MatchesSubmitted.Load()),
		logger.Int64("matchesApplied", stats.MatchesApplied.Load()),
		logger.Int64("matchesDuplicate", stats.MatchesDuplicate.Load()),
		logger.Int64("matchesFailed", stats.MatchesFailed.Load()),
		logger.Int64("eventsReceived", stats.EventsReceived.Load()),
		logger.Int("leaderboardEntries", leaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("matchesPerSecond", matchesPerSecond),
	)
}
