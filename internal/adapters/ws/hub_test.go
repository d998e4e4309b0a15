package ws_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/duelo/internal/adapters/ws"
	"github.com/okian/duelo/internal/domain/model"
	"github.com/okian/duelo/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func event(matchID, playerID string) model.RatingChangeEvent {
	return model.RatingChangeEvent{
		MatchID:   matchID,
		PlayerID:  playerID,
		OldRating: 1500,
		NewRating: 1516,
		Timestamp: time.Now().UTC(),
	}
}

func receive(sub *ws.Subscription, timeout time.Duration) (model.RatingChangeEvent, bool) {
	select {
	case payload, ok := <-sub.Events():
		if !ok {
			return model.RatingChangeEvent{}, false
		}
		var e model.RatingChangeEvent
		_ = json.Unmarshal(payload, &e)
		return e, true
	case <-time.After(timeout):
		return model.RatingChangeEvent{}, false
	}
}

func TestFilter(t *testing.T) {
	Convey("Given player filters", t, func() {
		Convey("Then an empty filter matches everyone", func() {
			So(ws.NewFilter(nil).Matches("anyone"), ShouldBeTrue)
		})

		Convey("Then the literal all matches everyone", func() {
			f := ws.NewFilter([]string{"alice", "all"})
			So(f.Matches("bob"), ShouldBeTrue)
		})

		Convey("Then a player list admits only its members", func() {
			f := ws.NewFilter([]string{"alice", "bob"})
			So(f.Matches("alice"), ShouldBeTrue)
			So(f.Matches("carol"), ShouldBeFalse)
		})
	})
}

func TestHub_Routing(t *testing.T) {
	ctx := context.Background()

	Convey("Given a hub with subscribers", t, func() {
		h := ws.NewHub()
		defer h.Stop()

		all := h.Subscribe(ws.NewFilter(nil))
		onlyAlice := h.Subscribe(ws.NewFilter([]string{"alice"}))

		Convey("When an event for alice is routed", func() {
			h.Route(ctx, event("m1", "alice"))

			Convey("Then both subscribers receive it", func() {
				got, ok := receive(all, time.Second)
				So(ok, ShouldBeTrue)
				So(got.PlayerID, ShouldEqual, "alice")

				got, ok = receive(onlyAlice, time.Second)
				So(ok, ShouldBeTrue)
				So(got.MatchID, ShouldEqual, "m1")
			})
		})

		Convey("When an event for bob is routed", func() {
			h.Route(ctx, event("m2", "bob"))

			Convey("Then the filtered subscriber does not see it", func() {
				_, ok := receive(all, time.Second)
				So(ok, ShouldBeTrue)

				_, ok = receive(onlyAlice, 50*time.Millisecond)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a subscription replaces its filter", func() {
			onlyAlice.SetFilter(ws.NewFilter([]string{"bob"}))
			h.Route(ctx, event("m3", "bob"))

			Convey("Then the new filter takes effect", func() {
				got, ok := receive(onlyAlice, time.Second)
				So(ok, ShouldBeTrue)
				So(got.PlayerID, ShouldEqual, "bob")
			})
		})
	})
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	Convey("Given a hub", t, func() {
		h := ws.NewHub()
		defer h.Stop()

		Convey("When subscribers come and go", func() {
			a := h.Subscribe(ws.NewFilter(nil))
			b := h.Subscribe(ws.NewFilter(nil))
			So(h.SubscriberCount(), ShouldEqual, 2)
			So(a.ID, ShouldNotEqual, b.ID)

			h.Unsubscribe(a.ID)

			Convey("Then the count tracks and the channel closes", func() {
				So(h.SubscriberCount(), ShouldEqual, 1)
				_, open := <-a.Events()
				So(open, ShouldBeFalse)
			})

			Convey("And unsubscribing twice is harmless", func() {
				h.Unsubscribe(a.ID)
				So(h.SubscriberCount(), ShouldEqual, 1)
			})
		})
	})
}

func TestHub_SlowConsumer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a hub with tiny subscriber buffers", t, func() {
		h := ws.NewHub(
			ws.WithSubscriberBuffer(1),
			ws.WithMaxDrops(2),
		)
		defer h.Stop()

		slow := h.Subscribe(ws.NewFilter(nil))

		Convey("When a subscriber stops draining", func() {
			// First event fills the buffer; the rest overflow until the
			// drop threshold disconnects the subscriber.
			for i := 0; i < 5; i++ {
				h.Route(ctx, event("m", "alice"))
			}

			Convey("Then the subscriber is dropped, not waited on", func() {
				So(h.SubscriberCount(), ShouldEqual, 0)
			})

			Convey("And a healthy subscriber is unaffected", func() {
				healthy := h.Subscribe(ws.NewFilter(nil))
				h.Route(ctx, event("m9", "alice"))

				got, ok := receive(healthy, time.Second)
				So(ok, ShouldBeTrue)
				So(got.MatchID, ShouldEqual, "m9")
				_ = slow
			})
		})
	})
}

func TestHub_PublishPipeline(t *testing.T) {
	Convey("Given a started hub", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h := ws.NewHub(ws.WithWorkerCount(2))
		h.Start(ctx)
		defer h.Stop()

		sub := h.Subscribe(ws.NewFilter(nil))

		Convey("When events are published", func() {
			h.Publish(ctx, event("m1", "alice"))
			h.Publish(ctx, event("m1", "bob"))

			Convey("Then delivery workers carry them to the subscriber", func() {
				seen := map[string]bool{}
				for i := 0; i < 2; i++ {
					got, ok := receive(sub, 2*time.Second)
					So(ok, ShouldBeTrue)
					seen[got.PlayerID] = true
				}
				So(seen["alice"], ShouldBeTrue)
				So(seen["bob"], ShouldBeTrue)
			})
		})
	})
}
