// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Apply processes a submitted match result. A match ID that was
	// already applied returns the stored outcome with duplicate=true.
	Apply(ctx context.Context, res model.MatchResult) (*model.MatchOutcome, bool, error)

	// Read operations expose rating data.
	Rating(ctx context.Context, playerID string) (RatingView, error)
	TopN(ctx context.Context, n int) ([]RatingView, error)
}

// RatingView mirrors the read shape returned by rating queries.
type RatingView = types.RatingView

// Subscriber accepts websocket subscriptions for live rating changes.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	resultsHandler     *ResultsHandler
	ratingHandler      *RatingHandler
	leaderboardHandler *LeaderboardHandler
	streamHandler      *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, subscriber Subscriber, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		resultsHandler:     NewResultsHandler(deps),
		ratingHandler:      NewRatingHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		streamHandler:      NewStreamHandler(subscriber),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/results", MetricsMiddleware(s.resultsHandler.HandlePostResult, "results"))
	mux.HandleFunc("/rating/", MetricsMiddleware(s.ratingHandler.HandleGetRating, "rating"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/ws", s.streamHandler.HandleSubscribe)
}

// resultRequest mirrors the wire schema for POST /results. The winner
// is numeric: 0 = player1 wins, 1 = player2 wins, 2 = draw.
type resultRequest struct {
	MatchID   string `json:"matchId"`
	Player1ID string `json:"player1Id"`
	Player2ID string `json:"player2Id"`
	Winner    *int   `json:"winner"`
}

// parseWinner maps the wire winner field to a domain outcome. A missing
// winner maps to an out-of-range value the validator rejects.
func parseWinner(w *int) model.Outcome {
	if w == nil {
		return model.Outcome(-1)
	}
	return model.Outcome(*w)
}

// resultResponse acknowledges a match submission with both players'
// rating changes. Replays answer the originally computed changes with
// the duplicate flag set.
type resultResponse struct {
	MatchID   string                  `json:"matchId"`
	Player1   model.RatingChangeEvent `json:"player1"`
	Player2   model.RatingChangeEvent `json:"player2"`
	Duplicate bool                    `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
