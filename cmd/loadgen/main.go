package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/duelo/internal/loadtest"
	"github.com/okian/duelo/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumMatches     = 10000
	defaultNumPlayers     = 500
	defaultTopN           = 1000
	defaultDuplicateRatio = 0.1
	defaultRating         = 1500
	defaultTimeout        = 30 * time.Second
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL        = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numMatches     = flag.Int("matches", defaultNumMatches, "Number of distinct matches to submit")
		numPlayers     = flag.Int("players", defaultNumPlayers, "Size of the player pool")
		workers        = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent submitters")
		duplicateRatio = flag.Float64("duplicates", defaultDuplicateRatio, "Fraction of matches resubmitted to exercise idempotency")
		topN           = flag.Int("top", defaultTopN, "Number of leaderboard entries to fetch for verification")
		rating         = flag.Float64("rating", defaultRating, "Service default rating, used by the conservation check")
		timeout        = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		subscribe      = flag.Bool("subscribe", false, "Open a websocket and count received rating changes")
		verbose        = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:        *baseURL,
		NumMatches:     *numMatches,
		NumPlayers:     *numPlayers,
		Workers:        *workers,
		DuplicateRatio: *duplicateRatio,
		TopN:           *topN,
		DefaultRating:  *rating,
		Timeout:        *timeout,
		Subscribe:      *subscribe,
		Verbose:        *verbose,
	}

	if err := loadtest.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("load test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
