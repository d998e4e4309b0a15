package loadtest

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// submission is one POST /results payload, tagged with whether it is a
// deliberate duplicate of an earlier submission. Winner is numeric on
// the wire: 0 = player1 wins, 1 = player2 wins.
type submission struct {
	MatchID   string `json:"matchId"`
	Player1ID string `json:"player1Id"`
	Player2ID string `json:"player2Id"`
	Winner    int    `json:"winner"`

	duplicate bool
}

// randomInt returns a uniform int in [0, n) using crypto/rand.
func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateMatches builds NumMatches distinct submissions over a shared
// player pool, then appends DuplicateRatio resubmissions of randomly
// chosen earlier matches.
func generateMatches(cfg *Config, stats *Stats) []submission {
	players := make([]string, cfg.NumPlayers)
	for i := range players {
		players[i] = "player-" + uuid.NewString()
	}

	matches := make([]submission, 0, cfg.NumMatches)
	for i := 0; i < cfg.NumMatches; i++ {
		p1 := randomInt(cfg.NumPlayers)
		p2 := randomInt(cfg.NumPlayers - 1)
		if p2 >= p1 {
			p2++
		}

		winner := randomInt(2)

		matches = append(matches, submission{
			MatchID:   "match-" + uuid.NewString(),
			Player1ID: players[p1],
			Player2ID: players[p2],
			Winner:    winner,
		})
	}

	dupCount := int(float64(cfg.NumMatches) * cfg.DuplicateRatio)
	for i := 0; i < dupCount; i++ {
		dup := matches[randomInt(cfg.NumMatches)]
		dup.duplicate = true
		matches = append(matches, dup)
	}

	stats.MatchesGenerated = len(matches)
	return matches
}
