package stats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rift-tracker/internal/db"
	"rift-tracker/internal/stats"

	. "github.com/smartystreets/goconvey/convey"
)

type failingLister struct{}

func (failingLister) ListPlayers(context.Context) ([]db.Player, error) {
	return nil, db.ErrUnavailable
}

func TestRefresher(t *testing.T) {
	ctx := context.Background()

	Convey("Given two stored players", t, func() {
		store := newStore(t)
		for _, puuid := range []string{"p1", "p2"} {
			_, err := store.UpsertPlayer(ctx, &db.Player{PUUID: puuid, GameName: puuid, TagLine: "NA1"})
			So(err, ShouldBeNil)
		}
		insert(t, store, db.Match{MatchID: "NA1_1", PUUID: "p1", Champion: "Ahri", Win: true})
		agg := stats.NewAggregator(store)

		Convey("When a refresh runs once", func() {
			n, err := stats.NewRefresher(agg, store, time.Minute).RunOnce(ctx)

			Convey("Then every player gets a summary row", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)

				p1, err := store.GetStatsSummary(ctx, "p1")
				So(err, ShouldBeNil)
				So(p1.TotalGames, ShouldEqual, 1)

				p2, err := store.GetStatsSummary(ctx, "p2")
				So(err, ShouldBeNil)
				So(p2.TotalGames, ShouldEqual, 0)
				So(p2.FavoriteChampion, ShouldEqual, "None")
			})
		})

		Convey("When the refresher is scheduled", func() {
			r := stats.NewRefresher(agg, store, 20*time.Millisecond)
			So(r.Start(ctx), ShouldBeNil)

			Convey("Then summaries appear without an explicit run", func() {
				var err error
				for i := 0; i < 100; i++ {
					if _, err = store.GetStatsSummary(ctx, "p1"); err == nil {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(err, ShouldBeNil)
				So(r.Stop(), ShouldBeNil)
			})
		})
	})

	Convey("Given a non-positive interval", t, func() {
		r := stats.NewRefresher(stats.NewAggregator(newStore(t)), failingLister{}, 0)

		Convey("Then Start refuses to schedule", func() {
			So(r.Start(ctx), ShouldNotBeNil)
			So(r.Stop(), ShouldBeNil)
		})
	})

	Convey("Given a lister that fails", t, func() {
		r := stats.NewRefresher(stats.NewAggregator(newStore(t)), failingLister{}, time.Minute)

		Convey("Then RunOnce reports the error", func() {
			_, err := r.RunOnce(ctx)
			So(errors.Is(err, db.ErrUnavailable), ShouldBeTrue)
		})
	})
}
