package testframes

import (
	"time"

	"github.com/okian/powerscan/internal/domain/landmark"
)

// Config holds configuration for the frame test
type Config struct {
	BaseURL         string        // Base URL of the service
	Players         int           // Number of simulated players
	FramesPerPlayer int           // Frames streamed per measurement window
	FrameInterval   time.Duration // Delay between frames
	Timeout         time.Duration // HTTP request timeout
	OutputFile      string        // Output file for generated frames
	LogFile         string        // Log file for test output
	Verbose         bool          // Enable verbose logging
}

// playerRun is one simulated player's generated input.
type playerRun struct {
	Name   string           `json:"name"`
	Gender string           `json:"gender"`
	Frames []landmark.Frame `json:"frames"`
}

// combatStats mirrors the per-frame reply payload.
type combatStats struct {
	BasePower       int64 `json:"base_power"`
	PoseBonus       int64 `json:"pose_bonus"`
	ExpressionBonus int64 `json:"expression_bonus"`
	SpeedBonus      int64 `json:"speed_bonus"`
	TotalPower      int64 `json:"total_power"`
}

// statsReply is one websocket answer.
type statsReply struct {
	CombatStats combatStats `json:"combat_stats"`
	Received    int         `json:"received"`
	Error       string      `json:"error,omitempty"`
}

// sessionState mirrors the session snapshot shape the API returns.
type sessionState struct {
	ID    string `json:"id"`
	Mode  string `json:"mode"`
	Phase string `json:"phase"`
}

// rankingEntry mirrors one ranked record.
type rankingEntry struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int64  `json:"score"`
	Image string `json:"image,omitempty"`
}

// Stats holds test statistics
type Stats struct {
	PlayersSimulated int
	FramesGenerated  int
	FramesSent       int
	RepliesReceived  int
	ParseFailures    int
	ResultsSaved     int
	RankingEntries   int
	BestTotalPower   int64
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
