package session

import "fmt"

// Snapshot is the flat serialized form of a session, small enough to ride
// along with the kiosk page across navigation boundaries. Snapshot images are
// deliberately not carried; a restored name prompt saves without one.
type Snapshot struct {
	ID            string        `json:"id"`
	Mode          Mode          `json:"mode,omitempty"`
	Phase         Phase         `json:"phase"`
	PlayerIndex   int           `json:"player_index,omitempty"`
	Gender        string        `json:"gender,omitempty"`
	CapturedScore int64         `json:"captured_score,omitempty"`
	Player1       *PlayerResult `json:"player1,omitempty"`
	Player2       *PlayerResult `json:"player2,omitempty"`
}

// Snapshot serializes the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.id,
		Mode:        s.mode,
		Phase:       s.phase,
		PlayerIndex: s.playerIdx,
		Gender:      s.gender,
	}
	if s.phase == PhaseNamePrompt {
		snap.CapturedScore = s.capturedStats.TotalPower
	}
	if s.players[0] != nil {
		p := *s.players[0]
		snap.Player1 = &p
	}
	if s.players[1] != nil {
		p := *s.players[1]
		snap.Player2 = &p
	}
	return snap
}

// Restore builds a session from a snapshot after validating its invariants.
// A snapshot that violates them is rejected with ErrInvalidState, never
// repaired. A session restored mid-measurement has no running timer; the
// kiosk issues BeginMeasurement to reopen the window.
func Restore(snap Snapshot, opts ...Option) (*Session, error) {
	if err := snap.validate(); err != nil {
		return nil, err
	}
	s := New(snap.ID, opts...)
	s.mode = snap.Mode
	s.phase = snap.Phase
	s.playerIdx = snap.PlayerIndex
	s.gender = snap.Gender
	if snap.Phase == PhaseNamePrompt {
		s.capturedStats.TotalPower = snap.CapturedScore
	}
	if snap.Player1 != nil {
		p := *snap.Player1
		s.players[0] = &p
	}
	if snap.Player2 != nil {
		p := *snap.Player2
		s.players[1] = &p
	}
	return s, nil
}

// validate checks the cross-field invariants of a snapshot.
func (snap Snapshot) validate() error {
	if snap.ID == "" {
		return fmt.Errorf("%w: missing session id", ErrInvalidState)
	}

	switch snap.Phase {
	case PhaseIdle:
		if snap.Mode != "" || snap.PlayerIndex != 0 || snap.Player1 != nil || snap.Player2 != nil {
			return fmt.Errorf("%w: idle snapshot carries play-through state", ErrInvalidState)
		}
		return nil
	case PhaseGenderSelect, PhaseMeasuring, PhaseNamePrompt, PhaseBattle, PhaseFinalized:
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, snap.Phase)
	}

	switch snap.Mode {
	case ModeSolo, ModeTwoPlayer:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidState, snap.Mode)
	}

	if snap.Player2 != nil && snap.Player1 == nil {
		return fmt.Errorf("%w: player two without player one", ErrInvalidState)
	}
	if snap.Mode == ModeSolo && (snap.Player2 != nil || snap.PlayerIndex > 1) {
		return fmt.Errorf("%w: solo snapshot carries a second player", ErrInvalidState)
	}

	switch snap.Phase {
	case PhaseGenderSelect, PhaseMeasuring, PhaseNamePrompt:
		if snap.PlayerIndex != 1 && snap.PlayerIndex != 2 {
			return fmt.Errorf("%w: phase %q requires an active player", ErrInvalidState, snap.Phase)
		}
		if snap.PlayerIndex == 2 && snap.Player1 == nil {
			return fmt.Errorf("%w: player two active before player one finalized", ErrInvalidState)
		}
	case PhaseBattle:
		if snap.Mode != ModeTwoPlayer {
			return fmt.Errorf("%w: battle requires two-player mode", ErrInvalidState)
		}
		if snap.Player1 == nil || snap.Player2 == nil {
			return fmt.Errorf("%w: battle before both players finalized", ErrInvalidState)
		}
	case PhaseFinalized:
		if snap.Player1 == nil {
			return fmt.Errorf("%w: finalized without a result", ErrInvalidState)
		}
		if snap.Mode == ModeTwoPlayer && snap.Player2 == nil {
			return fmt.Errorf("%w: finalized two-player game missing player two", ErrInvalidState)
		}
	}
	return nil
}
