package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/okian/leadscore/internal/config"
	"github.com/okian/leadscore/internal/domain/engagement"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.NightlyInterval, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.DraftEnabled, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When a field breaks a constraint", func() {
			cfg.LogFormat = "xml"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given only defaults", t, func() {
		t.Setenv("LEADSCORE_CONFIG", "")
		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg.DBPath, convey.ShouldEqual, "leadscore.db")
	})

	convey.Convey("Given a YAML file and environment overrides", t, func() {
		path := writeFile(t, "leadscore.yaml", "addr: \":8080\"\nqueue_size: 64\nnightly_interval: 6h\nlog_format: json\n")
		t.Setenv("LEADSCORE_CONFIG", path)
		t.Setenv("LEADSCORE_QUEUE_SIZE", "128")
		t.Setenv("LEADSCORE_DRAFT_ENABLED", "false")

		cfg, err := config.Load(ctx)

		convey.Convey("Then env wins over the file and the file over defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 128)
			convey.So(cfg.NightlyInterval, convey.ShouldEqual, 6*time.Hour)
			convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			convey.So(cfg.DraftEnabled, convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given a missing config file", t, func() {
		t.Setenv("LEADSCORE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		_, err := config.Load(ctx)
		convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
	})

	convey.Convey("Given an invalid override", t, func() {
		t.Setenv("LEADSCORE_CONFIG", "")
		t.Setenv("LEADSCORE_WORKER_COUNT", "0")
		_, err := config.Load(ctx)
		convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
	})
}

func TestLoadPack(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given no pack path", t, func() {
		p, err := config.LoadPack(ctx, "")
		convey.So(err, convey.ShouldBeNil)
		convey.So(p.Readiness.Weights.Momentum, convey.ShouldEqual, 3000)

		e, err := p.Build()
		convey.So(err, convey.ShouldBeNil)
		convey.So(e.Library.Channel, convey.ShouldEqual, "email")
	})

	convey.Convey("Given a pack that overrides a few tables", t, func() {
		path := writeFile(t, "pack.yaml", `
readiness:
  momentum:
    base_scores:
      funding_raised: 40
engagement:
  cadence:
    cooldown_days: 30
  bands:
    - {lower: 0, type: "Observe Only"}
    - {lower: 0.5, type: "Standard Outreach"}
`)
		p, err := config.LoadPack(ctx, path)

		convey.Convey("Then overrides apply and untouched values keep their defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(p.Readiness.Momentum.BaseScores["funding_raised"], convey.ShouldEqual, 40)
			convey.So(p.Readiness.Momentum.BaseScores["headcount_growth"], convey.ShouldEqual, 20)
			convey.So(p.Engagement.Cadence.CooldownDays, convey.ShouldEqual, 30)
			convey.So(p.Engagement.Cadence.DeclineLookbackDays, convey.ShouldEqual, 180)
			convey.So(p.Engagement.Bands.Map(0.6), convey.ShouldEqual, engagement.StandardOutreach)
		})
	})

	convey.Convey("Given a pack whose weights no longer sum to one", t, func() {
		path := writeFile(t, "pack.yaml", "readiness:\n  weights:\n    momentum: 2999\n")
		_, err := config.LoadPack(ctx, path)
		convey.So(errors.Is(err, config.ErrInvalidPack), convey.ShouldBeTrue)
	})

	convey.Convey("Given a pack with an unknown recommendation tier", t, func() {
		path := writeFile(t, "pack.yaml", "engagement:\n  bands:\n    - {lower: 0, type: \"Maybe Later\"}\n")
		_, err := config.LoadPack(ctx, path)
		convey.So(errors.Is(err, config.ErrInvalidPack), convey.ShouldBeTrue)
	})
}
