// Package session drives the kiosk play-through as an explicit command FSM.
//
// One Session covers one play-through: gender select, a timed measurement
// window fed by the landmark stream, a name prompt that persists the result,
// and either a solo finalization or a two-player battle. The state is plain
// data so it can be serialized across kiosk page navigations and restored
// with full invariant validation.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/powerscan/internal/domain/scoring"
)

// Mode selects the play-through flow.
type Mode string

const (
	ModeSolo      Mode = "solo"
	ModeTwoPlayer Mode = "two_player"
)

// Phase is the current FSM state.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseGenderSelect Phase = "gender_select"
	PhaseMeasuring    Phase = "measuring"
	PhaseNamePrompt   Phase = "name_prompt"
	PhaseBattle       Phase = "battle"
	PhaseFinalized    Phase = "finalized"
)

// PlaceholderName is used when the player confirms an empty name.
const PlaceholderName = "PLAYER"

// defaultMeasureDuration is the measurement window length.
const defaultMeasureDuration = 10 * time.Second

// PlayerResult is one finalized player outcome.
type PlayerResult struct {
	Name      string `json:"name"`
	Score     int64  `json:"score"`
	ImageFile string `json:"image_file,omitempty"`
}

// PersistFunc durably stores a finalized result and returns the saved image
// filename. A non-nil error keeps the session in the name prompt so the
// player can retry without re-measuring.
type PersistFunc func(name string, score int64, snapshot string) (imageFile string, err error)

// TransitionHook observes phase changes, e.g. for metrics.
type TransitionHook func(from, to Phase)

// Session is a single play-through. All methods are safe for concurrent use,
// but the intended shape is a single command writer plus the landmark stream
// calling ObserveStats.
type Session struct {
	mu sync.Mutex

	id        string
	mode      Mode
	phase     Phase
	playerIdx int
	gender    string
	consumed  bool

	// Live measurement state. lastStats tracks the most recent scored frame;
	// the timer elapsing freezes it into capturedStats for the name prompt.
	lastStats        scoring.Breakdown
	lastSnapshot     string
	statsObserved    bool
	capturedStats    scoring.Breakdown
	capturedSnapshot string

	players [2]*PlayerResult

	timer      *time.Timer
	timerGen   int
	measureDur time.Duration

	cameraHeld    bool
	releaseCamera func()
	onTransition  TransitionHook
	baseline      scoring.Breakdown

	lastActive time.Time
}

// New creates an idle session with configuration options.
func New(id string, opts ...Option) *Session {
	s := &Session{
		id:         id,
		phase:      PhaseIdle,
		measureDur: defaultMeasureDuration,
		baseline:   scoring.Breakdown{TotalPower: scoring.DefaultConstants().Baseline},
		lastActive: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CurrentPhase returns the current phase.
func (s *Session) CurrentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActive returns the time of the last accepted command.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Gender returns the current player's gender selection.
func (s *Session) Gender() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gender
}

// Start begins a play-through in the given mode. Valid only while idle.
func (s *Session) Start(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(PhaseIdle); err != nil {
		return err
	}
	if mode != ModeSolo && mode != ModeTwoPlayer {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidState, mode)
	}
	s.mode = mode
	s.playerIdx = 1
	s.transition(PhaseGenderSelect)
	return nil
}

// SelectGender records the current player's gender. Unknown values are kept
// as-is and score neutral downstream.
func (s *Session) SelectGender(gender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(PhaseGenderSelect); err != nil {
		return err
	}
	s.gender = gender
	s.touch()
	return nil
}

// BeginMeasurement acquires the camera and starts (or restarts) the
// measurement timer. Valid from gender select, and from measuring after a
// cancelled name prompt or a restore.
func (s *Session) BeginMeasurement() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(PhaseGenderSelect, PhaseMeasuring); err != nil {
		return err
	}
	s.cameraHeld = true
	s.statsObserved = false
	s.lastSnapshot = ""
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(s.measureDur, func() { s.measurementElapsed(gen) })
	if s.phase != PhaseMeasuring {
		s.transition(PhaseMeasuring)
	} else {
		s.touch()
	}
	return nil
}

// ObserveStats records the latest scored frame and optional snapshot image
// during the measurement window.
func (s *Session) ObserveStats(stats scoring.Breakdown, snapshot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(PhaseMeasuring); err != nil {
		return err
	}
	s.lastStats = stats
	s.statsObserved = true
	if snapshot != "" {
		s.lastSnapshot = snapshot
	}
	s.touch()
	return nil
}

// measurementElapsed is the timer callback. A stale generation means the
// window was restarted or abandoned and the firing is ignored.
func (s *Session) measurementElapsed(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.timerGen || s.phase != PhaseMeasuring {
		return
	}
	if s.statsObserved {
		s.capturedStats = s.lastStats
	} else {
		// No detector frames arrived; the player still gets the baseline.
		s.capturedStats = s.baseline
	}
	s.capturedSnapshot = s.lastSnapshot
	s.transition(PhaseNamePrompt)
}

// CapturedScore returns the score frozen by the last elapsed measurement.
func (s *Session) CapturedScore() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturedStats.TotalPower
}

// ConfirmName finalizes the current player under the given display name.
// An empty name becomes the placeholder. persist runs outside the name
// prompt's point of no return: on error the session stays in the prompt and
// the captured measurement is kept for retry.
func (s *Session) ConfirmName(name string, persist PersistFunc) (PlayerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(PhaseNamePrompt); err != nil {
		return PlayerResult{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = PlaceholderName
	}

	var imageFile string
	if persist != nil {
		var err error
		imageFile, err = persist(name, s.capturedStats.TotalPower, s.capturedSnapshot)
		if err != nil {
			return PlayerResult{}, err
		}
	}

	result := PlayerResult{
		Name:      name,
		Score:     s.capturedStats.TotalPower,
		ImageFile: imageFile,
	}
	s.players[s.playerIdx-1] = &result

	switch {
	case s.mode == ModeSolo:
		s.releaseCameraLocked()
		s.transition(PhaseFinalized)
	case s.playerIdx == 1:
		// Player two starts over from gender select with a clean window.
		s.playerIdx = 2
		s.gender = ""
		s.statsObserved = false
		s.lastSnapshot = ""
		s.capturedStats = scoring.Breakdown{}
		s.capturedSnapshot = ""
		s.transition(PhaseGenderSelect)
	default:
		s.releaseCameraLocked()
		s.transition(PhaseBattle)
	}
	return result, nil
}

// CancelName abandons the prompt and returns to the measurement phase. The
// timer does not restart on its own; the kiosk issues BeginMeasurement when
// the player is ready.
func (s *Session) CancelName() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(PhaseNamePrompt); err != nil {
		return err
	}
	s.statsObserved = false
	s.capturedStats = scoring.Breakdown{}
	s.capturedSnapshot = ""
	s.transition(PhaseMeasuring)
	return nil
}

// Exit abandons the play-through from any phase, stopping the timer and
// releasing the camera if held.
func (s *Session) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return ErrConsumed
	}
	s.stopTimerLocked()
	s.releaseCameraLocked()
	s.mode = ""
	s.playerIdx = 0
	s.gender = ""
	s.players = [2]*PlayerResult{}
	s.statsObserved = false
	s.capturedStats = scoring.Breakdown{}
	s.capturedSnapshot = ""
	s.lastSnapshot = ""
	s.transition(PhaseIdle)
	return nil
}

// ConsumeResults hands out the finalized results exactly once. Valid in the
// finalized phase (solo) or the battle phase (two player); afterwards the
// session is spent and rejects every command.
func (s *Session) ConsumeResults() ([]PlayerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return nil, ErrConsumed
	}
	if err := s.guard(PhaseFinalized, PhaseBattle); err != nil {
		return nil, err
	}
	var out []PlayerResult
	for _, p := range s.players {
		if p != nil {
			out = append(out, *p)
		}
	}
	s.consumed = true
	s.stopTimerLocked()
	s.releaseCameraLocked()
	s.transition(PhaseFinalized)
	return out, nil
}

// guard rejects the command unless the phase is one of the allowed set.
// Must be called with s.mu held.
func (s *Session) guard(allowed ...Phase) error {
	if s.consumed {
		return ErrConsumed
	}
	for _, p := range allowed {
		if s.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: command not valid in phase %q", ErrInvalidState, s.phase)
}

func (s *Session) transition(to Phase) {
	from := s.phase
	s.phase = to
	s.touch()
	if s.onTransition != nil && from != to {
		s.onTransition(from, to)
	}
}

func (s *Session) touch() {
	s.lastActive = time.Now()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// releaseCameraLocked invokes the release hook exactly once per acquisition.
func (s *Session) releaseCameraLocked() {
	if !s.cameraHeld {
		return
	}
	s.cameraHeld = false
	if s.releaseCamera != nil {
		s.releaseCamera()
	}
}
