package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/vibo/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		// keep a stray .env in the working directory out of the picture
		_ = os.Setenv("VIBO_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load()

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.MaxBackdateDays, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("VIBO_ADDR", ":8080")
			_ = os.Setenv("VIBO_QUEUE_SIZE", "500")
			_ = os.Setenv("VIBO_WORKER_COUNT", "3")
			_ = os.Setenv("VIBO_RECOMPUTE_POLICY", "ABORT")
			_ = os.Setenv("VIBO_MAX_BACKDATE_DAYS", "0")
			_ = os.Setenv("VIBO_STORE_MAX_OPEN_CONNS", "4")
			_ = os.Setenv("VIBO_STORE_CONN_MAX_LIFETIME", "5m")

			cfg, err := config.Load()

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.RecomputePolicy, convey.ShouldEqual, config.PolicyAbort)
				convey.So(cfg.MaxBackdateDays, convey.ShouldEqual, 0)
				convey.So(cfg.StoreMaxOpenConns, convey.ShouldEqual, 4)
				convey.So(cfg.StoreConnMaxLifetime, convey.ShouldEqual, 5*time.Minute)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeFile(t, "vibo.yaml", `
addr: ":9090"
store_driver: sqlite
store_dsn: /tmp/vibo.db
max_ranking_limit: 50
`)
			_ = os.Setenv("VIBO_CONFIG", path)

			cfg, err := config.Load()

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "/tmp/vibo.db")
				convey.So(cfg.MaxRankingLimit, convey.ShouldEqual, 50)
			})

			convey.Convey("And env vars should win over the file", func() {
				_ = os.Setenv("VIBO_MAX_RANKING_LIMIT", "25")
				cfg, err := config.Load()
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MaxRankingLimit, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When a .env file is present", func() {
			path := writeFile(t, "test.env", "VIBO_LOG_LEVEL=debug\nVIBO_LOCK_STRIPES=16\n")
			_ = os.Setenv("VIBO_ENV_FILE", path)

			cfg, err := config.Load()

			convey.Convey("Then its variables should be applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.LockStripes, convey.ShouldEqual, 16)
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("VIBO_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

			_, err := config.Load()

			convey.Convey("Then it should fail to load", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the result is invalid", func() {
			_ = os.Setenv("VIBO_STORE_DRIVER", "postgres")

			_, err := config.Load()

			convey.Convey("Then validation should reject it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		"VIBO_CONFIG",
		"VIBO_ENV_FILE",
		"VIBO_ADDR",
		"VIBO_QUEUE_SIZE",
		"VIBO_WORKER_COUNT",
		"VIBO_RECOMPUTE_POLICY",
		"VIBO_MAX_BACKDATE_DAYS",
		"VIBO_MAX_RANKING_LIMIT",
		"VIBO_LOG_LEVEL",
		"VIBO_LOCK_STRIPES",
		"VIBO_STORE_DRIVER",
		"VIBO_STORE_MAX_OPEN_CONNS",
		"VIBO_STORE_CONN_MAX_LIFETIME",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
