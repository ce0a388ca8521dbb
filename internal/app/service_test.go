package app_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	app "github.com/okian/powerscan/internal/app"
	"github.com/okian/powerscan/internal/domain/scoring"
	"github.com/okian/powerscan/internal/domain/session"
	"github.com/okian/powerscan/internal/framelog"
	logging "github.com/okian/powerscan/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func pngDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newService(t *testing.T, opts ...app.Option) (*app.Service, string) {
	t.Helper()
	dir := t.TempDir()
	base := []app.Option{
		app.WithRankingPath(filepath.Join(dir, "ranking.csv")),
		app.WithAssetDir(filepath.Join(dir, "assets")),
		app.WithFrameLogPath(filepath.Join(dir, "frames.csv")),
		app.WithMeasureDuration(60 * time.Millisecond),
	}
	svc := app.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc, dir
}

func waitForPhase(svc *app.Service, id string, want session.Phase) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := svc.SessionSnapshot(id); ok && snap.Phase == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestSaveAndDelete(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()

	Convey("Given a running service", t, func() {
		svc, dir := newService(t)

		Convey("When a result is saved without an image", func() {
			rec, img, err := svc.SaveResult(ctx, "Ken", 250_000, "")

			Convey("Then the record exists with no snapshot", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldEqual, 1)
				So(img, ShouldBeEmpty)
			})
		})

		Convey("When a result is saved with a snapshot", func() {
			rec, img, err := svc.SaveResult(ctx, "Ryu", 310_000, pngDataURL(t))
			So(err, ShouldBeNil)
			So(rec.ImageFile, ShouldEqual, "Ryu.png")
			So(img, ShouldEqual, "Ryu.png")

			Convey("Then the snapshot file is on disk", func() {
				_, statErr := os.Stat(filepath.Join(dir, "assets", "Ryu.png"))
				So(statErr, ShouldBeNil)
			})

			Convey("And deleting the record cascades to the snapshot", func() {
				ok, delErr := svc.DeleteResult(ctx, rec.ID)
				So(delErr, ShouldBeNil)
				So(ok, ShouldBeTrue)
				_, statErr := os.Stat(filepath.Join(dir, "assets", "Ryu.png"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the snapshot payload is garbage", func() {
			rec, img, err := svc.SaveResult(ctx, "Guile", 180_000, "data:image/png;base64,bm90LWFuLWltYWdl")

			Convey("Then the record is still saved, image omitted", func() {
				So(err, ShouldBeNil)
				So(rec.ID, ShouldBeGreaterThan, 0)
				So(img, ShouldBeEmpty)
			})
		})

		Convey("When the name is blank", func() {
			_, _, err := svc.SaveResult(ctx, "   ", 100, "")

			Convey("Then the save is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When deleting an unknown id", func() {
			ok, err := svc.DeleteResult(ctx, 9999)

			Convey("Then the delete is a quiet no-op", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestRanking(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()

	Convey("Given a service with three saved results", t, func() {
		svc, _ := newService(t, app.WithTopNLimit(2))
		_, _, _ = svc.SaveResult(ctx, "Ken", 200_000, "")
		_, _, _ = svc.SaveResult(ctx, "Ryu", 300_000, "")
		_, _, _ = svc.SaveResult(ctx, "Chun", 250_000, "")

		Convey("When asking for the ranking", func() {
			recs, err := svc.Ranking(ctx, 0)

			Convey("Then it is score-descending and capped at the limit", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
				So(recs[0].Name, ShouldEqual, "Ryu")
				So(recs[1].Name, ShouldEqual, "Chun")
			})
		})

		Convey("When asking for more than the limit allows", func() {
			recs, err := svc.Ranking(ctx, 50)

			Convey("Then the limit still wins", func() {
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 2)
			})
		})
	})
}

func TestSessionCommands(t *testing.T) {
	_ = logging.Init()
	ctx := context.Background()
	baseline := scoring.DefaultConstants().Baseline

	Convey("Given a solo session driven through commands", t, func() {
		svc, _ := newService(t)
		snap, err := svc.CreateSession(session.ModeSolo)
		So(err, ShouldBeNil)
		So(snap.Phase, ShouldEqual, session.PhaseGenderSelect)
		id := snap.ID

		Convey("When the player plays through", func() {
			out, cmdErr := svc.SessionCommand(ctx, id, app.Command{Name: "select_gender", Gender: "female"})
			So(cmdErr, ShouldBeNil)
			So(out.State.Gender, ShouldEqual, "female")

			_, cmdErr = svc.SessionCommand(ctx, id, app.Command{Name: "begin_measurement"})
			So(cmdErr, ShouldBeNil)

			stats := scoring.Breakdown{TotalPower: baseline + 42_000}
			So(svc.ObserveStats(id, stats, pngDataURL(t)), ShouldBeNil)
			So(waitForPhase(svc, id, session.PhaseNamePrompt), ShouldBeTrue)

			out, cmdErr = svc.SessionCommand(ctx, id, app.Command{Name: "confirm_name", PlayerName: "Sakura"})
			So(cmdErr, ShouldBeNil)

			Convey("Then the result is finalized and persisted", func() {
				So(out.State.Phase, ShouldEqual, session.PhaseFinalized)
				So(out.Player, ShouldNotBeNil)
				So(out.Player.Name, ShouldEqual, "Sakura")
				So(out.Player.Score, ShouldEqual, baseline+42_000)
				So(out.Player.ImageFile, ShouldEqual, "Sakura.png")

				recs, rankErr := svc.Ranking(ctx, 0)
				So(rankErr, ShouldBeNil)
				So(len(recs), ShouldEqual, 1)
				So(recs[0].Name, ShouldEqual, "Sakura")
			})

			Convey("And consuming the results retires the session", func() {
				out, cmdErr = svc.SessionCommand(ctx, id, app.Command{Name: "consume_results"})
				So(cmdErr, ShouldBeNil)
				So(len(out.Results), ShouldEqual, 1)

				_, live := svc.SessionSnapshot(id)
				So(live, ShouldBeFalse)
			})
		})

		Convey("When a command is unknown", func() {
			_, cmdErr := svc.SessionCommand(ctx, id, app.Command{Name: "dance"})
			So(errors.Is(cmdErr, app.ErrUnknownCommand), ShouldBeTrue)
		})

		Convey("When exiting the session", func() {
			_, cmdErr := svc.SessionCommand(ctx, id, app.Command{Name: "exit"})
			So(cmdErr, ShouldBeNil)

			_, live := svc.SessionSnapshot(id)
			So(live, ShouldBeFalse)
		})
	})

	Convey("Given an unknown session id", t, func() {
		svc, _ := newService(t)

		Convey("When any command arrives", func() {
			_, err := svc.SessionCommand(ctx, "nope", app.Command{Name: "exit"})

			Convey("Then it reports not found", func() {
				So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a frame is bound to it", func() {
			err := svc.ObserveStats("nope", scoring.Breakdown{}, "")
			So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestRestoreAndStats(t *testing.T) {
	_ = logging.Init()

	Convey("Given a serialized session state", t, func() {
		svc, _ := newService(t)

		Convey("When a valid snapshot is restored", func() {
			snap, err := svc.RestoreSession(session.Snapshot{
				ID:          "kiosk-7",
				Mode:        session.ModeSolo,
				Phase:       session.PhaseGenderSelect,
				PlayerIndex: 1,
			})

			Convey("Then the session is live again", func() {
				So(err, ShouldBeNil)
				So(snap.ID, ShouldEqual, "kiosk-7")

				live, ok := svc.SessionSnapshot("kiosk-7")
				So(ok, ShouldBeTrue)
				So(live.Phase, ShouldEqual, session.PhaseGenderSelect)
			})
		})

		Convey("When the snapshot is inconsistent", func() {
			_, err := svc.RestoreSession(session.Snapshot{ID: "bad", Phase: session.PhaseBattle})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a running service", t, func() {
		svc, _ := newService(t)

		Convey("When telemetry is enqueued", func() {
			ok := svc.Enqueue(context.Background(), framelog.Entry{TotalPower: 123})
			So(ok, ShouldBeTrue)
		})

		Convey("When stats are requested", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats, ShouldContainKey, "records")
			So(stats, ShouldContainKey, "activeSessions")
		})
	})
}
