package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/warp/careerup/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(config.New())

			convey.Convey("Then the defaults are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Database.Path, convey.ShouldEqual, "careerup.db")
				convey.So(cfg.Auth.SessionTTL, convey.ShouldEqual, 12*time.Hour)
				convey.So(cfg.Monitor.Interval, convey.ShouldEqual, time.Hour)
				convey.So(cfg.Eligibility.ThresholdPercent.String(), convey.ShouldEqual, "3")
				convey.So(cfg.Eligibility.BorderlinePercent.String(), convey.ShouldEqual, "3.5")
				convey.So(cfg.Eligibility.MonthsPerPeriod, convey.ShouldEqual, 6)
				convey.So(cfg.Location.String(), convey.ShouldEqual, "Asia/Tokyo")
				convey.So(cfg.OCR.Enabled(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading with a YAML file", func() {
			path := filepath.Join(t.TempDir(), "careerup.yaml")
			yaml := `
server:
  addr: ":7070"
database:
  path: "/var/lib/careerup/desk.db"
eligibility:
  borderline_percent: 4
logging:
  format: json
timezone: UTC
`
			convey.So(os.WriteFile(path, []byte(yaml), 0o600), convey.ShouldBeNil)

			v := config.New()
			convey.So(config.ReadFile(v, path), convey.ShouldBeNil)
			cfg, err := config.Load(v)

			convey.Convey("Then the file values are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Database.Path, convey.ShouldEqual, "/var/lib/careerup/desk.db")
				convey.So(cfg.Eligibility.BorderlinePercent.String(), convey.ShouldEqual, "4")
				convey.So(cfg.Logging.Format, convey.ShouldEqual, "json")
				convey.So(cfg.Location, convey.ShouldEqual, time.UTC)
			})
		})

		convey.Convey("When the values are invalid", func() {
			v := config.New()
			v.Set("logging.level", "verbose")
			v.Set("timezone", "Mars/Olympus")
			v.Set("eligibility.threshold_percent", "three")
			v.Set("ocr.max_attempts", 0)

			_, err := config.Load(v)

			convey.Convey("Then every problem is reported", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "logging.level")
				convey.So(err.Error(), convey.ShouldContainSubstring, "timezone")
				convey.So(err.Error(), convey.ShouldContainSubstring, "eligibility.threshold_percent")
				convey.So(err.Error(), convey.ShouldContainSubstring, "ocr.max_attempts")
			})
		})

		convey.Convey("When the config file is missing", func() {
			err := config.ReadFile(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))

			convey.Convey("Then reading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestConfigLoader_Environment(t *testing.T) {
	t.Setenv("CAREERUP_SERVER_ADDR", ":9090")
	t.Setenv("CAREERUP_AUTH_PASSWORD", "secret")
	t.Setenv("CAREERUP_ELIGIBILITY_THRESHOLD_PERCENT", "5")
	t.Setenv("CAREERUP_MONITOR_INTERVAL", "15m")
	t.Setenv("CAREERUP_OCR_API_KEY", "sk-test")

	convey.Convey("Given CAREERUP_ environment variables", t, func() {
		convey.Convey("When loading", func() {
			cfg, err := config.Load(config.New())

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Server.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Auth.Password, convey.ShouldEqual, "secret")
				convey.So(cfg.Eligibility.ThresholdPercent.String(), convey.ShouldEqual, "5")
				convey.So(cfg.Monitor.Interval, convey.ShouldEqual, 15*time.Minute)
				convey.So(cfg.OCR.Enabled(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestNewLogger(t *testing.T) {
	convey.Convey("Given a json logging config at warn level", t, func() {
		var buf bytes.Buffer
		logger := config.LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

		convey.Convey("When logging below and at the level", func() {
			logger.Info("hidden")
			logger.Warn("shown", "office", "office-1")

			convey.Convey("Then only the warning is written as JSON", func() {
				convey.So(buf.String(), convey.ShouldNotContainSubstring, "hidden")
				convey.So(buf.String(), convey.ShouldContainSubstring, `"office":"office-1"`)
			})
		})
	})
}
