package testframes

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/okian/powerscan/internal/domain/landmark"
	"github.com/okian/powerscan/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	archetypeDivisor   = 5
)

// Pose archetype cases.
const (
	caseStanding  = 0
	caseArmsWide  = 1
	caseCrouching = 2
	caseTPose     = 3
	caseJumping   = 4
)

// Jitter bounds keep frames looking like a real detector: landmarks wobble a
// little between frames, a lot when the archetype is jumping.
const (
	baseJitter = 0.004
	jumpJitter = 0.03
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generatePlayers builds one frame sequence per simulated player.
func generatePlayers(ctx context.Context, config *Config, stats *Stats) ([]playerRun, error) {
	logger.Get().Info(ctx, "generating player frame sequences",
		logger.Int("players", config.Players),
		logger.Int("framesPerPlayer", config.FramesPerPlayer))

	players := make([]playerRun, config.Players)
	for i := range players {
		gender := "male"
		if i%2 == 1 {
			gender = "female"
		}
		archetype, _ := rand.Int(rand.Reader, big.NewInt(archetypeDivisor))
		players[i] = playerRun{
			Name:   "Player_" + strconv.Itoa(i+1),
			Gender: gender,
			Frames: generateSequence(int(archetype.Int64()), config.FramesPerPlayer),
		}
		stats.FramesGenerated += len(players[i].Frames)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	stats.PlayersSimulated = len(players)
	logger.Get().Info(ctx, "generated frame sequences", logger.Int("frames", stats.FramesGenerated))
	return players, nil
}

// generateSequence produces a jittered run of frames for one archetype.
func generateSequence(archetype, count int) []landmark.Frame {
	base := archetypeFrame(archetype)
	jitter := baseJitter
	if archetype == caseJumping {
		jitter = jumpJitter
	}

	frames := make([]landmark.Frame, count)
	for i := range frames {
		frame := make(landmark.Frame, len(base))
		copy(frame, base)
		for j := range frame {
			frame[j].X += (getRandomFloat() - 0.5) * 2 * jitter
			frame[j].Y += (getRandomFloat() - 0.5) * 2 * jitter
		}
		frames[i] = frame
	}
	return frames
}

// archetypeFrame returns the canonical 33-point pose for an archetype.
func archetypeFrame(archetype int) landmark.Frame {
	f := make(landmark.Frame, landmark.MinPoints)
	for i := range f {
		f[i] = landmark.Point{X: 0.5, Y: 0.5, Visibility: 1}
	}

	// Shared upright skeleton
	f[landmark.Nose] = landmark.Point{X: 0.5, Y: 0.15, Visibility: 1}
	f[landmark.LeftShoulder] = landmark.Point{X: 0.42, Y: 0.3, Visibility: 1}
	f[landmark.RightShoulder] = landmark.Point{X: 0.58, Y: 0.3, Visibility: 1}
	f[landmark.LeftHip] = landmark.Point{X: 0.45, Y: 0.55, Visibility: 1}
	f[landmark.RightHip] = landmark.Point{X: 0.55, Y: 0.55, Visibility: 1}
	f[landmark.LeftKnee] = landmark.Point{X: 0.45, Y: 0.72, Visibility: 1}
	f[landmark.RightKnee] = landmark.Point{X: 0.55, Y: 0.72, Visibility: 1}
	f[landmark.LeftAnkle] = landmark.Point{X: 0.45, Y: 0.9, Visibility: 1}
	f[landmark.RightAnkle] = landmark.Point{X: 0.55, Y: 0.9, Visibility: 1}
	f[landmark.LeftWrist] = landmark.Point{X: 0.38, Y: 0.45, Visibility: 1}
	f[landmark.RightWrist] = landmark.Point{X: 0.62, Y: 0.45, Visibility: 1}

	switch archetype {
	case caseArmsWide:
		f[landmark.LeftWrist] = landmark.Point{X: 0.1, Y: 0.3, Visibility: 1}
		f[landmark.RightWrist] = landmark.Point{X: 0.9, Y: 0.3, Visibility: 1}
	case caseCrouching:
		f[landmark.Nose] = landmark.Point{X: 0.5, Y: 0.4, Visibility: 1}
		f[landmark.LeftShoulder] = landmark.Point{X: 0.42, Y: 0.5, Visibility: 1}
		f[landmark.RightShoulder] = landmark.Point{X: 0.58, Y: 0.5, Visibility: 1}
		f[landmark.LeftHip] = landmark.Point{X: 0.45, Y: 0.68, Visibility: 1}
		f[landmark.RightHip] = landmark.Point{X: 0.55, Y: 0.68, Visibility: 1}
	case caseTPose:
		f[landmark.LeftWrist] = landmark.Point{X: 0.15, Y: 0.3, Visibility: 1}
		f[landmark.RightWrist] = landmark.Point{X: 0.85, Y: 0.3, Visibility: 1}
		f[landmark.LeftAnkle] = landmark.Point{X: 0.38, Y: 0.9, Visibility: 1}
		f[landmark.RightAnkle] = landmark.Point{X: 0.62, Y: 0.9, Visibility: 1}
	case caseJumping:
		f[landmark.LeftWrist] = landmark.Point{X: 0.35, Y: 0.1, Visibility: 1}
		f[landmark.RightWrist] = landmark.Point{X: 0.65, Y: 0.1, Visibility: 1}
	case caseStanding:
	}
	return f
}
