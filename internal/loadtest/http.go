package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/duelo/pkg/logger"
)

// client wraps HTTP access to the service under test.
type client struct {
	base string
	http *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// checkHealth verifies the service answers on /healthz.
func (c *client) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// resultAck mirrors the POST /results response shape.
type resultAck struct {
	MatchID   string `json:"matchId"`
	Duplicate bool   `json:"duplicate"`
}

// postResult submits one match and reports whether the service flagged
// it as a duplicate.
func (c *client) postResult(ctx context.Context, sub submission) (duplicate bool, err error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/results", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("match %s rejected with status %d", sub.MatchID, resp.StatusCode)
	}

	var ack resultAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return false, err
	}
	return ack.Duplicate, nil
}

// leaderboardEntry mirrors the GET /leaderboard response shape.
type leaderboardEntry struct {
	PlayerID      string  `json:"playerId"`
	Rating        float64 `json:"rating"`
	MatchesPlayed int     `json:"matchesPlayed"`
}

// getLeaderboard fetches the top n rated players.
func (c *client) getLeaderboard(ctx context.Context, n int) ([]leaderboardEntry, error) {
	url := fmt.Sprintf("%s/leaderboard?limit=%d", c.base, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard request failed with status: %d", resp.StatusCode)
	}

	var entries []leaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// subscribeEvents opens a websocket on /ws and counts rating changes
// until ctx is done.
func subscribeEvents(ctx context.Context, baseURL string, stats *Stats) error {
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1) + "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Get().Debug(ctx, "websocket closed", logger.Error(err))
			return nil
		}
		stats.EventsReceived.Add(1)
	}
}
