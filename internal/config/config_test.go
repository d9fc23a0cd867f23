package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rift-tracker/internal/config"

	. "github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	Convey("Given a config with default values", t, func() {
		cfg := config.New()

		Convey("Then the Riot hosts and match count match the service defaults", func() {
			So(cfg.RiotRegionalURL, ShouldEqual, "https://americas.api.riotgames.com")
			So(cfg.RiotPlatformURL, ShouldEqual, "https://na1.api.riotgames.com")
			So(cfg.MatchCount, ShouldEqual, 20)
			So(cfg.DatabaseDriver, ShouldEqual, config.DriverPostgres)
			So(cfg.MatchCacheTTL, ShouldEqual, 7*24*time.Hour)
			So(cfg.StatsRefreshInterval, ShouldEqual, time.Duration(0))
		})

		Convey("Then validation fails until an API key is supplied", func() {
			err := cfg.Validate()
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)

			cfg.RiotAPIKey = "RGAPI-test"
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given a valid config", t, func() {
		cfg := config.New()
		cfg.RiotAPIKey = "RGAPI-test"

		Convey("When the driver is unknown", func() {
			cfg.DatabaseDriver = "mysql"
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When match_count is out of range", func() {
			cfg.MatchCount = 0
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
			cfg.MatchCount = 101
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When sqlite is selected without a path", func() {
			cfg.DatabaseDriver = config.DriverSQLite
			cfg.SQLitePath = ""
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the log level is unknown", func() {
			cfg.LogLevel = "chatty"
			So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestConfig_Load(t *testing.T) {
	Convey("Given a YAML file and environment overrides", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		yml := "port: \"9090\"\nmatch_count: 10\ndatabase_driver: sqlite\nstats_refresh_interval: 5m\n"
		So(os.WriteFile(path, []byte(yml), 0o644), ShouldBeNil)

		t.Setenv("CONFIG_FILE", path)
		t.Setenv("RIOT_API_KEY", "RGAPI-from-env")
		t.Setenv("MATCH_COUNT", "15")

		cfg, err := config.Load()

		Convey("Then env wins over the file and the file wins over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.RiotAPIKey, ShouldEqual, "RGAPI-from-env")
			So(cfg.MatchCount, ShouldEqual, 15)
			So(cfg.Port, ShouldEqual, "9090")
			So(cfg.DatabaseDriver, ShouldEqual, config.DriverSQLite)
			So(cfg.StatsRefreshInterval, ShouldEqual, 5*time.Minute)
			So(cfg.RiotTimeout, ShouldEqual, 30*time.Second)
		})
	})

	Convey("Given a missing config file", t, func() {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		t.Setenv("RIOT_API_KEY", "RGAPI-from-env")

		_, err := config.Load()

		Convey("Then loading fails with ErrLoadConfig", func() {
			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
		})
	})
}
