package stats_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rift-tracker/internal/db"
	"rift-tracker/internal/stats"

	. "github.com/smartystreets/goconvey/convey"
)

func newStore(t *testing.T) *db.SQLite {
	t.Helper()
	store, err := db.NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return store
}

func insert(t *testing.T, store *db.SQLite, m db.Match) {
	t.Helper()
	if m.GameStart.IsZero() {
		m.GameStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	if err := store.InsertMatch(context.Background(), &m); err != nil {
		t.Fatalf("InsertMatch failed: %v", err)
	}
}

type recordingMirror struct {
	rows []*db.PlayerStats
	err  error
}

func (m *recordingMirror) MirrorStats(_ context.Context, s *db.PlayerStats) error {
	m.rows = append(m.rows, s)
	return m.err
}

type brokenStore struct {
	aggErr    error
	upsertErr error
}

func (s *brokenStore) AggregateStats(context.Context, string) (*db.StatsAggregate, error) {
	if s.aggErr != nil {
		return nil, s.aggErr
	}
	return &db.StatsAggregate{TotalGames: 1, Wins: 1, FavoriteChampion: "Ahri"}, nil
}

func (s *brokenStore) UpsertStatsSummary(_ context.Context, st *db.PlayerStats) (*db.PlayerStats, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	return st, nil
}

func TestAggregator_ComputeStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given a player with no stored matches", t, func() {
		agg := stats.NewAggregator(newStore(t))

		Convey("Then the snapshot is all zeros with no favorite champion", func() {
			s, err := agg.ComputeStats(ctx, "nobody")
			So(err, ShouldBeNil)
			So(s.TotalGames, ShouldEqual, 0)
			So(s.Wins, ShouldEqual, 0)
			So(s.Losses, ShouldEqual, 0)
			So(s.WinRate, ShouldEqual, 0)
			So(s.AvgKDA, ShouldEqual, 0)
			So(s.AvgCS, ShouldEqual, 0)
			So(s.FavoriteChampion, ShouldEqual, "None")
		})
	})

	Convey("Given a player with three stored matches", t, func() {
		store := newStore(t)
		insert(t, store, db.Match{MatchID: "NA1_1", PUUID: "me", Champion: "Ahri", Kills: 10, Deaths: 0, Assists: 5, KDA: 15, Win: true, CS: 200, Gold: 12000, Damage: 30000})
		insert(t, store, db.Match{MatchID: "NA1_2", PUUID: "me", Champion: "Ahri", Kills: 3, Deaths: 4, Assists: 2, KDA: 1.25, Win: false, CS: 150, Gold: 9000, Damage: 15000})
		insert(t, store, db.Match{MatchID: "NA1_3", PUUID: "me", Champion: "Lux", Kills: 1, Deaths: 5, Assists: 9, KDA: 2, Win: false, CS: 31, Gold: 7001, Damage: 10001})
		insert(t, store, db.Match{MatchID: "NA1_3", PUUID: "someone-else", Champion: "Zed", Kills: 20, Win: true})
		agg := stats.NewAggregator(store)

		Convey("Then totals, rates and averages cover only that player", func() {
			s, err := agg.ComputeStats(ctx, "me")
			So(err, ShouldBeNil)
			So(s.PUUID, ShouldEqual, "me")
			So(s.TotalGames, ShouldEqual, 3)
			So(s.Wins, ShouldEqual, 1)
			So(s.Losses, ShouldEqual, 2)
			So(s.WinRate, ShouldEqual, 33.33)
			So(s.AvgKDA, ShouldEqual, 6.08)
			So(s.FavoriteChampion, ShouldEqual, "Ahri")
			So(s.TotalKills, ShouldEqual, 14)
			So(s.TotalDeaths, ShouldEqual, 9)
			So(s.TotalAssists, ShouldEqual, 16)
			So(s.AvgCS, ShouldEqual, 127)
			So(s.AvgGold, ShouldEqual, 9333.67)
			So(s.AvgDamage, ShouldEqual, 18333.67)
		})

		Convey("Then computing never writes a summary row", func() {
			_, err := agg.ComputeStats(ctx, "me")
			So(err, ShouldBeNil)
			_, err = store.GetStatsSummary(ctx, "me")
			So(errors.Is(err, db.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a tie for most played champion", t, func() {
		store := newStore(t)
		insert(t, store, db.Match{MatchID: "NA1_1", PUUID: "me", Champion: "Zed"})
		insert(t, store, db.Match{MatchID: "NA1_2", PUUID: "me", Champion: "Ahri"})

		Convey("Then the result is the same on every call", func() {
			agg := stats.NewAggregator(store)
			first, err := agg.ComputeStats(ctx, "me")
			So(err, ShouldBeNil)
			second, err := agg.ComputeStats(ctx, "me")
			So(err, ShouldBeNil)
			So(second.FavoriteChampion, ShouldEqual, first.FavoriteChampion)
			So(first.FavoriteChampion, ShouldEqual, "Ahri")
		})
	})

	Convey("Given a store that fails", t, func() {
		agg := stats.NewAggregator(&brokenStore{aggErr: fmt.Errorf("query: %w", db.ErrUnavailable)})

		Convey("Then the error surfaces with no partial data", func() {
			s, err := agg.ComputeStats(ctx, "me")
			So(s, ShouldBeNil)
			So(errors.Is(err, db.ErrUnavailable), ShouldBeTrue)
		})
	})
}

func TestAggregator_MaterializeStats(t *testing.T) {
	ctx := context.Background()

	Convey("Given stored matches and a mirror", t, func() {
		store := newStore(t)
		insert(t, store, db.Match{MatchID: "NA1_1", PUUID: "me", Champion: "Ahri", Kills: 4, Deaths: 2, Assists: 4, KDA: 4, Win: true})
		mirror := &recordingMirror{}
		agg := stats.NewAggregator(store, stats.WithMirror(mirror))

		Convey("When stats are materialized", func() {
			saved, err := agg.MaterializeStats(ctx, "me")
			So(err, ShouldBeNil)

			Convey("Then the summary row matches the computed snapshot", func() {
				row, err := store.GetStatsSummary(ctx, "me")
				So(err, ShouldBeNil)
				So(row.TotalGames, ShouldEqual, 1)
				So(row.WinRate, ShouldEqual, 100)
				So(row.FavoriteChampion, ShouldEqual, "Ahri")
				So(row.LastUpdated, ShouldNotBeNil)
				So(saved.TotalGames, ShouldEqual, row.TotalGames)
			})

			Convey("Then the mirror receives the saved row", func() {
				So(len(mirror.rows), ShouldEqual, 1)
				So(mirror.rows[0].PUUID, ShouldEqual, "me")
			})

			Convey("Then a recomputation overwrites the row wholesale", func() {
				insert(t, store, db.Match{MatchID: "NA1_2", PUUID: "me", Champion: "Lux", Win: false})
				_, err := agg.MaterializeStats(ctx, "me")
				So(err, ShouldBeNil)

				row, err := store.GetStatsSummary(ctx, "me")
				So(err, ShouldBeNil)
				So(row.TotalGames, ShouldEqual, 2)
				So(row.Losses, ShouldEqual, 1)
				So(row.WinRate, ShouldEqual, 50)
			})
		})

		Convey("When the mirror fails", func() {
			mirror.err = errors.New("turso down")

			Convey("Then materialization still succeeds", func() {
				saved, err := agg.MaterializeStats(ctx, "me")
				So(err, ShouldBeNil)
				So(saved.TotalGames, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a store whose upsert fails", t, func() {
		agg := stats.NewAggregator(&brokenStore{upsertErr: fmt.Errorf("upsert: %w", db.ErrUnavailable)})

		Convey("Then the error surfaces", func() {
			_, err := agg.MaterializeStats(ctx, "me")
			So(errors.Is(err, db.ErrUnavailable), ShouldBeTrue)
		})
	})
}
