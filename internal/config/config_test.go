package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/duelo/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given a fresh config", t, func() {
		cfg := config.New()

		Convey("Then rating defaults match a standard Elo setup", func() {
			So(cfg.KFactor, ShouldEqual, 32)
			So(cfg.DefaultRating, ShouldEqual, 1500)
			So(cfg.AllowDraws, ShouldBeFalse)
		})

		Convey("Then the service defaults are sane", func() {
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.Store, ShouldEqual, config.StoreMemory)
			So(cfg.LockTimeoutMS, ShouldEqual, 2000)
			So(cfg.CommitRetries, ShouldEqual, 3)
			So(cfg.ReservationTTLMS, ShouldEqual, 30_000)
			So(cfg.EventQueueSize, ShouldEqual, 65_536)
			So(cfg.SubscriberBuffer, ShouldEqual, 64)
			So(cfg.WorkerCount, ShouldBeGreaterThan, 0)
			So(cfg.MaxLeaderboardLimit, ShouldEqual, 100)
		})
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given no overrides", t, func() {
		cfg, err := config.Load(ctx)

		Convey("Then defaults come back", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.KFactor, ShouldEqual, 32)
		})
	})

	t.Run("environment overrides", func(t *testing.T) {
		Convey("Given environment overrides", t, func() {
			t.Setenv("DUELO_ADDR", ":7070")
			t.Setenv("DUELO_K_FACTOR", "16")
			t.Setenv("DUELO_ALLOW_DRAWS", "true")

			cfg, err := config.Load(ctx)

			Convey("Then env values win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.KFactor, ShouldEqual, 16)
				So(cfg.AllowDraws, ShouldBeTrue)
			})
		})
	})

	t.Run("YAML config file", func(t *testing.T) {
		Convey("Given a YAML config file", t, func() {
			path := filepath.Join(t.TempDir(), "duelo.yaml")
			yaml := "addr: \":6060\"\ndefault_rating: 1200\nstore: memory\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			t.Setenv("DUELO_CONFIG", path)

			Convey("When no env overrides are present", func() {
				cfg, err := config.Load(ctx)

				Convey("Then file values win over defaults", func() {
					So(err, ShouldBeNil)
					So(cfg.Addr, ShouldEqual, ":6060")
					So(cfg.DefaultRating, ShouldEqual, 1200)
				})
			})

			Convey("When env overrides the same key", func() {
				t.Setenv("DUELO_ADDR", ":5050")
				cfg, err := config.Load(ctx)

				Convey("Then env wins over the file", func() {
					So(err, ShouldBeNil)
					So(cfg.Addr, ShouldEqual, ":5050")
				})
			})
		})
	})

	t.Run("missing config file", func(t *testing.T) {
		Convey("Given a missing config file", t, func() {
			t.Setenv("DUELO_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
			_, err := config.Load(ctx)

			Convey("Then loading fails with a load error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			})
		})
	})

	t.Run("invalid settings", func(t *testing.T) {
		cases := map[string]string{
			"DUELO_K_FACTOR":              "0",
			"DUELO_LOCK_TIMEOUT_MS":       "-1",
			"DUELO_COMMIT_RETRIES":        "-2",
			"DUELO_MAX_LEADERBOARD_LIMIT": "0",
			"DUELO_STORE":                 "cassandra",
		}

		for key, value := range cases {
			key, value := key, value
			t.Run(key, func(t *testing.T) {
				Convey("Given invalid settings", t, func() {
					Convey("Then "+key+"="+value+" is rejected", func() {
						t.Setenv(key, value)
						_, err := config.Load(ctx)
						So(err, ShouldNotBeNil)
						So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
					})
				})
			})
		}
	})

	t.Run("redis store without an address", func(t *testing.T) {
		Convey("Given a redis store without an address", t, func() {
			t.Setenv("DUELO_STORE", "redis")
			t.Setenv("DUELO_REDIS_ADDR", "")
			_, err := config.Load(ctx)

			Convey("Then validation rejects it", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})

	t.Run("postgres store without a DSN", func(t *testing.T) {
		Convey("Given a postgres store without a DSN", t, func() {
			t.Setenv("DUELO_STORE", "postgres")
			_, err := config.Load(ctx)

			Convey("Then validation rejects it", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
