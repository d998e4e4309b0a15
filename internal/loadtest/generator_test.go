package loadtest

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerateMatches(t *testing.T) {
	Convey("Given a generation config", t, func() {
		cfg := &Config{
			NumMatches:     200,
			NumPlayers:     10,
			DuplicateRatio: 0.1,
		}
		stats := &Stats{}

		Convey("When matches are generated", func() {
			matches := generateMatches(cfg, stats)

			Convey("Then originals plus duplicates are produced", func() {
				So(len(matches), ShouldEqual, 220)
				So(stats.MatchesGenerated, ShouldEqual, 220)
			})

			Convey("Then no match pairs a player with themselves", func() {
				for _, m := range matches {
					So(m.Player1ID, ShouldNotEqual, m.Player2ID)
				}
			})

			Convey("Then originals carry unique match IDs", func() {
				seen := map[string]bool{}
				for _, m := range matches[:cfg.NumMatches] {
					So(seen[m.MatchID], ShouldBeFalse)
					seen[m.MatchID] = true
				}
			})

			Convey("Then every duplicate replays an original exactly", func() {
				originals := map[string]submission{}
				for _, m := range matches[:cfg.NumMatches] {
					So(m.duplicate, ShouldBeFalse)
					originals[m.MatchID] = m
				}
				for _, d := range matches[cfg.NumMatches:] {
					So(d.duplicate, ShouldBeTrue)
					orig, ok := originals[d.MatchID]
					So(ok, ShouldBeTrue)
					So(d.Player1ID, ShouldEqual, orig.Player1ID)
					So(d.Player2ID, ShouldEqual, orig.Player2ID)
					So(d.Winner, ShouldEqual, orig.Winner)
				}
			})

			Convey("Then winners stay in the accepted wire values", func() {
				for _, m := range matches {
					So(m.Winner, ShouldBeIn, 0, 1)
				}
			})
		})
	})
}
