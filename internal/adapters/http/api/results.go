// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/duelo/internal/domain/dedupe"
	"github.com/okian/duelo/internal/domain/match"
	"github.com/okian/duelo/internal/domain/model"
)

// ResultDependencies defines the interface for match submission.
type ResultDependencies interface {
	Apply(ctx context.Context, res model.MatchResult) (*model.MatchOutcome, bool, error)
}

// ResultsHandler handles match result submissions.
type ResultsHandler struct {
	deps ResultDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// HandlePostResult handles POST /results requests.
//
// Status mapping: applied and duplicate submissions both answer 200; the
// duplicate flag tells them apart. Malformed submissions answer 400. A
// match still being applied by another request answers 409. Transient
// contention (lock timeouts, exhausted commit retries) answers 503 so
// the client can resubmit the same match ID safely.
func (h *ResultsHandler) HandlePostResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_result"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res := model.MatchResult{
		MatchID:   req.MatchID,
		Player1ID: req.Player1ID,
		Player2ID: req.Player2ID,
		Outcome:   parseWinner(req.Winner),
	}

	outcome, duplicate, err := h.deps.Apply(r.Context(), res)
	if err != nil {
		var verr *match.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, "bad_request", verr)
		case errors.Is(err, dedupe.ErrInFlight):
			writeError(w, http.StatusConflict, "in_flight", err)
		case errors.Is(err, match.ErrLockTimeout), errors.Is(err, match.ErrRetriesExhausted):
			writeError(w, http.StatusServiceUnavailable, "contention", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		}
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{
		MatchID:   outcome.MatchID,
		Player1:   outcome.Player1,
		Player2:   outcome.Player2,
		Duplicate: duplicate,
	})
}
