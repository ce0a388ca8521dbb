package session_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/powerscan/internal/domain/scoring"
	"github.com/okian/powerscan/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

const testWindow = 30 * time.Millisecond

// waitForPhase polls until the session reaches the phase or the deadline
// passes, to avoid flaking on timer scheduling.
func waitForPhase(s *session.Session, p session.Phase) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.CurrentPhase() == p {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestSoloFlow(t *testing.T) {
	Convey("Given a solo play-through", t, func() {
		var released atomic.Int32
		s := session.New("s1",
			session.WithMeasureDuration(testWindow),
			session.WithCameraRelease(func() { released.Add(1) }),
		)

		So(s.Start(session.ModeSolo), ShouldBeNil)
		So(s.SelectGender("female"), ShouldBeNil)
		So(s.BeginMeasurement(), ShouldBeNil)

		Convey("When frames arrive and the window elapses", func() {
			So(s.ObserveStats(scoring.Breakdown{TotalPower: 250_000}, ""), ShouldBeNil)
			So(s.ObserveStats(scoring.Breakdown{TotalPower: 312_345}, "data:image/png;base64,AAAA"), ShouldBeNil)
			So(waitForPhase(s, session.PhaseNamePrompt), ShouldBeTrue)

			Convey("Then the last breakdown is the captured one", func() {
				So(s.CapturedScore(), ShouldEqual, 312_345)
			})

			Convey("And confirming a name finalizes and releases the camera once", func() {
				var gotSnapshot string
				result, err := s.ConfirmName("Ken", func(name string, score int64, snap string) (string, error) {
					gotSnapshot = snap
					return "Ken.png", nil
				})
				So(err, ShouldBeNil)
				So(result.Name, ShouldEqual, "Ken")
				So(result.Score, ShouldEqual, 312_345)
				So(result.ImageFile, ShouldEqual, "Ken.png")
				So(gotSnapshot, ShouldStartWith, "data:image/png")
				So(s.CurrentPhase(), ShouldEqual, session.PhaseFinalized)
				So(released.Load(), ShouldEqual, 1)

				Convey("And the results can be consumed exactly once", func() {
					results, err := s.ConsumeResults()
					So(err, ShouldBeNil)
					So(results, ShouldHaveLength, 1)
					So(results[0].Name, ShouldEqual, "Ken")

					_, err = s.ConsumeResults()
					So(errors.Is(err, session.ErrConsumed), ShouldBeTrue)
					So(errors.Is(s.Start(session.ModeSolo), session.ErrConsumed), ShouldBeTrue)
				})
			})

			Convey("And an empty name falls back to the placeholder", func() {
				result, err := s.ConfirmName("   ", nil)
				So(err, ShouldBeNil)
				So(result.Name, ShouldEqual, session.PlaceholderName)
			})

			Convey("And a persistence failure keeps the prompt open for retry", func() {
				boom := errors.New("disk full")
				_, err := s.ConfirmName("Ken", func(string, int64, string) (string, error) {
					return "", boom
				})
				So(errors.Is(err, boom), ShouldBeTrue)
				So(s.CurrentPhase(), ShouldEqual, session.PhaseNamePrompt)
				So(s.CapturedScore(), ShouldEqual, 312_345)

				result, err := s.ConfirmName("Ken", func(string, int64, string) (string, error) {
					return "Ken.png", nil
				})
				So(err, ShouldBeNil)
				So(result.Score, ShouldEqual, 312_345)
			})

			Convey("And cancelling returns to measuring without restarting the timer", func() {
				So(s.CancelName(), ShouldBeNil)
				So(s.CurrentPhase(), ShouldEqual, session.PhaseMeasuring)

				time.Sleep(3 * testWindow)
				So(s.CurrentPhase(), ShouldEqual, session.PhaseMeasuring)

				So(s.BeginMeasurement(), ShouldBeNil)
				So(waitForPhase(s, session.PhaseNamePrompt), ShouldBeTrue)
			})
		})

		Convey("When no detector frames arrive at all", func() {
			So(waitForPhase(s, session.PhaseNamePrompt), ShouldBeTrue)

			Convey("Then the captured score degrades to the baseline", func() {
				So(s.CapturedScore(), ShouldEqual, scoring.DefaultConstants().Baseline)
			})
		})

		Convey("When the player walks away mid-measurement", func() {
			So(s.Exit(), ShouldBeNil)

			Convey("Then the session is idle and the camera released once", func() {
				So(s.CurrentPhase(), ShouldEqual, session.PhaseIdle)
				So(released.Load(), ShouldEqual, 1)

				So(s.Exit(), ShouldBeNil)
				So(released.Load(), ShouldEqual, 1)
			})
		})
	})
}

func TestTwoPlayerFlow(t *testing.T) {
	Convey("Given a two-player play-through", t, func() {
		var released atomic.Int32
		s := session.New("s2",
			session.WithMeasureDuration(testWindow),
			session.WithCameraRelease(func() { released.Add(1) }),
		)

		runMeasurement := func(gender string, score int64) {
			So(s.SelectGender(gender), ShouldBeNil)
			So(s.BeginMeasurement(), ShouldBeNil)
			So(s.ObserveStats(scoring.Breakdown{TotalPower: score}, ""), ShouldBeNil)
			So(waitForPhase(s, session.PhaseNamePrompt), ShouldBeTrue)
		}

		So(s.Start(session.ModeTwoPlayer), ShouldBeNil)

		Convey("When player one finalizes", func() {
			runMeasurement("male", 200_000)
			_, err := s.ConfirmName("Ryu", nil)
			So(err, ShouldBeNil)

			Convey("Then the session loops back to gender select for player two", func() {
				So(s.CurrentPhase(), ShouldEqual, session.PhaseGenderSelect)
				So(s.Gender(), ShouldBeEmpty)
				So(released.Load(), ShouldEqual, 0)
			})

			Convey("And player two finalizing moves to battle", func() {
				runMeasurement("female", 310_000)
				_, err := s.ConfirmName("Chun", nil)
				So(err, ShouldBeNil)
				So(s.CurrentPhase(), ShouldEqual, session.PhaseBattle)
				So(released.Load(), ShouldEqual, 1)

				Convey("And consuming yields both results in play order", func() {
					results, err := s.ConsumeResults()
					So(err, ShouldBeNil)
					So(results, ShouldHaveLength, 2)
					So(results[0].Name, ShouldEqual, "Ryu")
					So(results[1].Name, ShouldEqual, "Chun")
				})
			})
		})

		Convey("When results are consumed before anyone finalizes", func() {
			_, err := s.ConsumeResults()

			Convey("Then the command is rejected", func() {
				So(errors.Is(err, session.ErrInvalidState), ShouldBeTrue)
			})
		})
	})
}

func TestCommandGuards(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		s := session.New("s3", session.WithMeasureDuration(testWindow))

		Convey("Then commands outside their phase are rejected", func() {
			So(errors.Is(s.SelectGender("male"), session.ErrInvalidState), ShouldBeTrue)
			So(errors.Is(s.BeginMeasurement(), session.ErrInvalidState), ShouldBeTrue)
			So(errors.Is(s.ObserveStats(scoring.Breakdown{}, ""), session.ErrInvalidState), ShouldBeTrue)
			So(errors.Is(s.CancelName(), session.ErrInvalidState), ShouldBeTrue)
			_, err := s.ConfirmName("x", nil)
			So(errors.Is(err, session.ErrInvalidState), ShouldBeTrue)
		})

		Convey("Then an unknown mode is rejected", func() {
			So(errors.Is(s.Start("spectator"), session.ErrInvalidState), ShouldBeTrue)
		})

		Convey("Then starting twice is rejected", func() {
			So(s.Start(session.ModeSolo), ShouldBeNil)
			So(errors.Is(s.Start(session.ModeSolo), session.ErrInvalidState), ShouldBeTrue)
		})
	})
}

func TestTransitionHook(t *testing.T) {
	Convey("Given a session with a transition observer", t, func() {
		var transitions atomic.Int32
		s := session.New("s4",
			session.WithMeasureDuration(testWindow),
			session.WithTransitionHook(func(from, to session.Phase) {
				transitions.Add(1)
			}),
		)

		Convey("When the solo flow runs to the name prompt", func() {
			So(s.Start(session.ModeSolo), ShouldBeNil)
			So(s.SelectGender("male"), ShouldBeNil)
			So(s.BeginMeasurement(), ShouldBeNil)
			So(waitForPhase(s, session.PhaseNamePrompt), ShouldBeTrue)

			Convey("Then every phase change was observed", func() {
				// idle->gender_select, gender_select->measuring, measuring->name_prompt
				So(transitions.Load(), ShouldEqual, 3)
			})
		})
	})
}

func TestSnapshotRestore(t *testing.T) {
	Convey("Given a session paused at the name prompt", t, func() {
		s := session.New("s5", session.WithMeasureDuration(testWindow))
		So(s.Start(session.ModeSolo), ShouldBeNil)
		So(s.SelectGender("female"), ShouldBeNil)
		So(s.BeginMeasurement(), ShouldBeNil)
		So(s.ObserveStats(scoring.Breakdown{TotalPower: 280_000}, ""), ShouldBeNil)
		So(waitForPhase(s, session.PhaseNamePrompt), ShouldBeTrue)

		snap := s.Snapshot()

		Convey("When the snapshot is restored", func() {
			restored, err := session.Restore(snap)
			So(err, ShouldBeNil)

			Convey("Then the prompt survives with its captured score", func() {
				So(restored.CurrentPhase(), ShouldEqual, session.PhaseNamePrompt)
				So(restored.CapturedScore(), ShouldEqual, 280_000)

				result, err := restored.ConfirmName("Ken", nil)
				So(err, ShouldBeNil)
				So(result.Score, ShouldEqual, 280_000)
			})

			Convey("Then the round trip is lossless", func() {
				So(restored.Snapshot(), ShouldResemble, snap)
			})
		})
	})

	Convey("Given invariant-violating snapshots", t, func() {
		p := &session.PlayerResult{Name: "Ryu", Score: 200_000}

		cases := map[string]session.Snapshot{
			"missing id": {Phase: session.PhaseIdle},
			"unknown phase": {
				ID: "x", Mode: session.ModeSolo, Phase: "warmup", PlayerIndex: 1,
			},
			"unknown mode": {
				ID: "x", Mode: "spectator", Phase: session.PhaseMeasuring, PlayerIndex: 1,
			},
			"idle with play-through state": {
				ID: "x", Mode: session.ModeSolo, Phase: session.PhaseIdle,
			},
			"player two without player one": {
				ID: "x", Mode: session.ModeTwoPlayer, Phase: session.PhaseBattle, PlayerIndex: 2,
				Player2: p,
			},
			"solo with second player": {
				ID: "x", Mode: session.ModeSolo, Phase: session.PhaseFinalized, PlayerIndex: 1,
				Player1: p, Player2: p,
			},
			"battle in solo mode": {
				ID: "x", Mode: session.ModeSolo, Phase: session.PhaseBattle, PlayerIndex: 1,
				Player1: p,
			},
			"battle before both finalized": {
				ID: "x", Mode: session.ModeTwoPlayer, Phase: session.PhaseBattle, PlayerIndex: 2,
				Player1: p,
			},
			"measuring without active player": {
				ID: "x", Mode: session.ModeSolo, Phase: session.PhaseMeasuring,
			},
			"player two measuring before player one finalized": {
				ID: "x", Mode: session.ModeTwoPlayer, Phase: session.PhaseMeasuring, PlayerIndex: 2,
			},
			"finalized without result": {
				ID: "x", Mode: session.ModeSolo, Phase: session.PhaseFinalized, PlayerIndex: 1,
			},
			"finalized two-player missing player two": {
				ID: "x", Mode: session.ModeTwoPlayer, Phase: session.PhaseFinalized, PlayerIndex: 2,
				Player1: p,
			},
		}

		for name, snap := range cases {
			Convey("Then restore rejects: "+name, func() {
				_, err := session.Restore(snap)
				So(errors.Is(err, session.ErrInvalidState), ShouldBeTrue)
			})
		}
	})
}

func TestManager(t *testing.T) {
	Convey("Given a session manager", t, func() {
		m := session.NewManager(session.WithMeasureDuration(testWindow))

		Convey("When a session is created", func() {
			s, err := m.Create(session.ModeSolo)
			So(err, ShouldBeNil)
			So(s.ID(), ShouldNotBeEmpty)
			So(s.CurrentPhase(), ShouldEqual, session.PhaseGenderSelect)

			Convey("Then it is retrievable by id", func() {
				got, ok := m.Get(s.ID())
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, s)
				So(m.Count(), ShouldEqual, 1)
			})

			Convey("And removing it exits the session", func() {
				m.Remove(s.ID())
				_, ok := m.Get(s.ID())
				So(ok, ShouldBeFalse)
				So(s.CurrentPhase(), ShouldEqual, session.PhaseIdle)
			})

			Convey("And pruning drops sessions idle past the ttl", func() {
				time.Sleep(20 * time.Millisecond)
				So(m.PruneIdle(time.Millisecond), ShouldEqual, 1)
				So(m.Count(), ShouldEqual, 0)
			})

			Convey("And a fresh session survives pruning", func() {
				So(m.PruneIdle(time.Hour), ShouldEqual, 0)
				So(m.Count(), ShouldEqual, 1)
			})
		})

		Convey("When an unknown mode is requested", func() {
			_, err := m.Create("spectator")
			So(errors.Is(err, session.ErrInvalidState), ShouldBeTrue)
			So(m.Count(), ShouldEqual, 0)
		})

		Convey("When a snapshot is restored over a live session", func() {
			s, err := m.Create(session.ModeSolo)
			So(err, ShouldBeNil)
			snap := s.Snapshot()

			restored, err := m.Restore(snap)
			So(err, ShouldBeNil)

			Convey("Then the manager serves the restored session", func() {
				got, ok := m.Get(snap.ID)
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, restored)
				So(m.Count(), ShouldEqual, 1)
			})
		})

		Convey("When an invalid snapshot is restored", func() {
			_, err := m.Restore(session.Snapshot{Phase: "warmup"})
			So(errors.Is(err, session.ErrInvalidState), ShouldBeTrue)
		})
	})
}
