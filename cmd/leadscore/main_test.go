package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/leadscore/internal/domain/critic"
	"github.com/okian/leadscore/internal/nightly"
	"github.com/smartystreets/goconvey/convey"
)

func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then every subcommand is registered", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			convey.So(names["serve"], convey.ShouldBeTrue)
			convey.So(names["nightly"], convey.ShouldBeTrue)
			convey.So(names["critic"], convey.ShouldBeTrue)
		})
	})
}

func TestCriticCommand(t *testing.T) {
	t.Setenv("LEADSCORE_DB_PATH", ":memory:")

	convey.Convey("Given the critic command", t, func() {
		ctx := context.Background()

		convey.Convey("When the draft is clean", func() {
			out, err := execute(ctx, "critic", "--subject", "Quick question", "--message", "Would you be open to a short note on API platform reviews? No pressure if the timing is off.")

			convey.Convey("Then it passes", func() {
				convey.So(err, convey.ShouldBeNil)
				var res critic.Result
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.Passed, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the draft uses surveillance language", func() {
			out, err := execute(ctx, "critic", "--message", "I noticed you are hiring. Act now and book a call.")

			convey.Convey("Then it is rejected with violations", func() {
				convey.So(errors.Is(err, errDraftRejected), convey.ShouldBeTrue)
				var res critic.Result
				convey.So(json.Unmarshal([]byte(out), &res), convey.ShouldBeNil)
				convey.So(res.Passed, convey.ShouldBeFalse)
				convey.So(res.Violations, convey.ShouldNotBeEmpty)
			})
		})

		convey.Convey("When the message flag is missing", func() {
			_, err := execute(ctx, "critic", "--subject", "hi")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestNightlyCommand(t *testing.T) {
	t.Setenv("LEADSCORE_DB_PATH", filepath.Join(t.TempDir(), "leadscore.db"))

	convey.Convey("Given the nightly command on an empty store", t, func() {
		ctx := context.Background()

		convey.Convey("When run for a fixed date", func() {
			out, err := execute(ctx, "nightly", "--as-of", "2025-03-01")

			convey.Convey("Then it prints an empty summary", func() {
				convey.So(err, convey.ShouldBeNil)
				var sum nightly.Summary
				convey.So(json.Unmarshal([]byte(out), &sum), convey.ShouldBeNil)
				convey.So(sum.Eligible, convey.ShouldEqual, 0)
				convey.So(sum.Scored, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the date is malformed", func() {
			_, err := execute(ctx, "nightly", "--as-of", "03/01/2025")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestServeCommand(t *testing.T) {
	t.Setenv("LEADSCORE_DB_PATH", ":memory:")
	t.Setenv("LEADSCORE_NIGHTLY_ENABLED", "false")

	convey.Convey("Given the serve command", t, func() {
		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				_, err := execute(ctx, "serve", "--addr", "127.0.0.1:0")
				done <- err
			}()
			time.Sleep(200 * time.Millisecond)
			cancel()

			convey.Convey("Then it shuts down cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("serve did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("LEADSCORE_WORKER_COUNT", "-3")
		_, err := execute(context.Background(), "serve")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
