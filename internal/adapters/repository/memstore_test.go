package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/duelo/internal/adapters/repository"
	"github.com/okian/duelo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemStore_Get(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory store", t, func() {
		s := repository.NewMemStore()

		Convey("When reading an unknown player", func() {
			row, err := s.Get(ctx, "alice")

			Convey("Then the default row comes back instead of an error", func() {
				So(err, ShouldBeNil)
				So(row.PlayerID, ShouldEqual, "alice")
				So(row.Rating, ShouldEqual, 1500)
				So(row.MatchesPlayed, ShouldEqual, 0)
				So(row.Version, ShouldEqual, 0)
			})

			Convey("And the read does not persist anything", func() {
				So(s.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the store uses a custom default rating", func() {
			s := repository.NewMemStore(repository.WithDefaultRating(1000))
			row, err := s.Get(ctx, "bob")

			Convey("Then unknown players start from it", func() {
				So(err, ShouldBeNil)
				So(row.Rating, ShouldEqual, 1000)
			})
		})
	})
}

func TestMemStore_CommitPair(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory store", t, func() {
		s := repository.NewMemStore()

		Convey("When committing two fresh rows", func() {
			a, _ := s.Get(ctx, "alice")
			b, _ := s.Get(ctx, "bob")
			a.Rating, a.MatchesPlayed = 1516, 1
			b.Rating, b.MatchesPlayed = 1484, 1

			err := s.CommitPair(ctx, a, b)

			Convey("Then both rows persist with bumped versions", func() {
				So(err, ShouldBeNil)

				gotA, _ := s.Get(ctx, "alice")
				gotB, _ := s.Get(ctx, "bob")
				So(gotA.Rating, ShouldEqual, 1516)
				So(gotA.Version, ShouldEqual, 1)
				So(gotA.UpdatedAt.IsZero(), ShouldBeFalse)
				So(gotB.Rating, ShouldEqual, 1484)
				So(gotB.Version, ShouldEqual, 1)
				So(s.Count(ctx), ShouldEqual, 2)
			})
		})

		Convey("When a row changed between read and commit", func() {
			a, _ := s.Get(ctx, "alice")
			b, _ := s.Get(ctx, "bob")
			So(s.CommitPair(ctx, a, b), ShouldBeNil)

			// Stale copies still carry Version 0.
			staleA := a
			freshB, _ := s.Get(ctx, "bob")
			err := s.CommitPair(ctx, staleA, freshB)

			Convey("Then the whole commit fails with a conflict", func() {
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("And neither row is touched", func() {
				gotB, _ := s.Get(ctx, "bob")
				So(gotB.Version, ShouldEqual, 1)
			})
		})

		Convey("When either side is stale the other is not written", func() {
			a, _ := s.Get(ctx, "alice")
			b, _ := s.Get(ctx, "bob")
			So(s.CommitPair(ctx, a, b), ShouldBeNil)

			freshA, _ := s.Get(ctx, "alice")
			freshA.Rating = 9999
			staleB := b
			staleB.Rating = 1

			So(errors.Is(s.CommitPair(ctx, freshA, staleB), repository.ErrConflict), ShouldBeTrue)

			gotA, _ := s.Get(ctx, "alice")
			So(gotA.Rating, ShouldNotEqual, 9999)
		})
	})
}

func TestMemStore_TopN(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with several rated players", t, func() {
		s := repository.NewMemStore()

		commit := func(id string, rating float64) {
			row, _ := s.Get(ctx, id)
			row.Rating = rating
			row.MatchesPlayed = 1
			other, _ := s.Get(ctx, "sink-"+id)
			So(s.CommitPair(ctx, row, other), ShouldBeNil)
		}

		commit("carol", 1700)
		commit("alice", 1600)
		commit("bob", 1600)
		commit("dave", 1400)

		Convey("When asking for the top 3", func() {
			rows, err := s.TopN(ctx, 3)

			Convey("Then rows come back rating-descending with stable ties", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 3)
				So(rows[0].PlayerID, ShouldEqual, "carol")
				So(rows[1].PlayerID, ShouldEqual, "alice")
				So(rows[2].PlayerID, ShouldEqual, "bob")
			})
		})

		Convey("When asking for more players than exist", func() {
			rows, err := s.TopN(ctx, 1000)

			Convey("Then every persisted row comes back", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, s.Count(ctx))
			})
		})

		Convey("When asking for a non-positive limit", func() {
			_, err := s.TopN(ctx, 0)

			Convey("Then the limit is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			})
		})
	})
}

func TestMemStore_DefaultRowShape(t *testing.T) {
	ctx := context.Background()

	Convey("Given rows produced by Get for unknown players", t, func() {
		s := repository.NewMemStore()
		row, _ := s.Get(ctx, "nobody")

		Convey("Then the row is directly usable as a commit base", func() {
			So(row, ShouldResemble, model.PlayerRating{PlayerID: "nobody", Rating: 1500})
		})
	})
}
