package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/duelo/internal/domain/dedupe"
	"github.com/okian/duelo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleOutcome(matchID string) model.MatchOutcome {
	now := time.Now().UTC()
	return model.MatchOutcome{
		MatchID: matchID,
		Player1: model.RatingChangeEvent{
			MatchID: matchID, PlayerID: "alice",
			OldRating: 1500, NewRating: 1516, MatchesPlayed: 1, Timestamp: now,
		},
		Player2: model.RatingChangeEvent{
			MatchID: matchID, PlayerID: "bob",
			OldRating: 1500, NewRating: 1484, MatchesPlayed: 1, Timestamp: now,
		},
		AppliedAt: now,
	}
}

func TestInMemoryGuard_Reserve(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory guard", t, func() {
		g := dedupe.NewInMemoryGuard()

		Convey("When reserving a fresh match ID", func() {
			err := g.Reserve(ctx, "match-1")

			Convey("Then the reservation succeeds", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When reserving the same match ID twice", func() {
			So(g.Reserve(ctx, "match-1"), ShouldBeNil)
			err := g.Reserve(ctx, "match-1")

			Convey("Then the second reservation reports in-flight", func() {
				So(errors.Is(err, dedupe.ErrInFlight), ShouldBeTrue)
			})
		})

		Convey("When reserving an applied match ID", func() {
			So(g.Reserve(ctx, "match-1"), ShouldBeNil)
			So(g.MarkApplied(ctx, "match-1", sampleOutcome("match-1")), ShouldBeNil)
			err := g.Reserve(ctx, "match-1")

			Convey("Then it reports already applied", func() {
				So(errors.Is(err, dedupe.ErrAlreadyApplied), ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryGuard_ReserveAtomicity(t *testing.T) {
	ctx := context.Background()

	Convey("Given many goroutines racing to reserve one match ID", t, func() {
		g := dedupe.NewInMemoryGuard()

		const racers = 64
		var wg sync.WaitGroup
		results := make(chan error, racers)

		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- g.Reserve(ctx, "contested")
			}()
		}
		wg.Wait()
		close(results)

		Convey("Then exactly one reservation wins", func() {
			var wins, inFlight int
			for err := range results {
				switch {
				case err == nil:
					wins++
				case errors.Is(err, dedupe.ErrInFlight):
					inFlight++
				}
			}
			So(wins, ShouldEqual, 1)
			So(inFlight, ShouldEqual, racers-1)
		})
	})
}

func TestInMemoryGuard_ReservationExpiry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a guard with a very short reservation TTL", t, func() {
		g := dedupe.NewInMemoryGuard(
			dedupe.WithReservationTTL(10 * time.Millisecond),
		)

		Convey("When a reservation outlives its TTL", func() {
			So(g.Reserve(ctx, "orphan"), ShouldBeNil)
			time.Sleep(20 * time.Millisecond)

			Convey("Then another submitter can take it over", func() {
				So(g.Reserve(ctx, "orphan"), ShouldBeNil)
			})
		})

		Convey("When the match was applied before the TTL check", func() {
			So(g.Reserve(ctx, "done"), ShouldBeNil)
			So(g.MarkApplied(ctx, "done", sampleOutcome("done")), ShouldBeNil)
			time.Sleep(20 * time.Millisecond)

			Convey("Then expiry never resurrects an applied match", func() {
				So(errors.Is(g.Reserve(ctx, "done"), dedupe.ErrAlreadyApplied), ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryGuard_ReleaseAndReplay(t *testing.T) {
	ctx := context.Background()

	Convey("Given a guard holding a reservation", t, func() {
		g := dedupe.NewInMemoryGuard()
		So(g.Reserve(ctx, "match-1"), ShouldBeNil)

		Convey("When the reservation is released", func() {
			So(g.Release(ctx, "match-1"), ShouldBeNil)

			Convey("Then the match can be reserved again", func() {
				So(g.Reserve(ctx, "match-1"), ShouldBeNil)
			})
		})

		Convey("When the match is applied", func() {
			out := sampleOutcome("match-1")
			So(g.MarkApplied(ctx, "match-1", out), ShouldBeNil)

			Convey("Then Release refuses to roll it back", func() {
				So(errors.Is(g.Release(ctx, "match-1"), dedupe.ErrAlreadyApplied), ShouldBeTrue)
			})

			Convey("Then Applied returns the stored outcome", func() {
				stored, ok, err := g.Applied(ctx, "match-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(stored.MatchID, ShouldEqual, "match-1")
				So(stored.Player1.NewRating, ShouldAlmostEqual, 1516, 1e-9)
				So(stored.Player2.NewRating, ShouldAlmostEqual, 1484, 1e-9)
			})
		})

		Convey("When querying an unknown match", func() {
			stored, ok, err := g.Applied(ctx, "never-seen")

			Convey("Then it reports not applied", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(stored, ShouldBeNil)
			})
		})
	})
}

func TestInMemoryGuard_ManyMatches(t *testing.T) {
	ctx := context.Background()

	Convey("Given a guard tracking many matches", t, func() {
		g := dedupe.NewInMemoryGuard()

		for i := 0; i < 100; i++ {
			id := fmt.Sprintf("match-%d", i)
			So(g.Reserve(ctx, id), ShouldBeNil)
			So(g.MarkApplied(ctx, id, sampleOutcome(id)), ShouldBeNil)
		}

		Convey("Then each match answers independently", func() {
			for i := 0; i < 100; i++ {
				_, ok, err := g.Applied(ctx, fmt.Sprintf("match-%d", i))
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			}
		})
	})
}
