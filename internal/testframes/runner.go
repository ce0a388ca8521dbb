package testframes

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/powerscan/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Phase polling bounds for the measurement window.
const (
	phasePollInterval = 250 * time.Millisecond
	phasePollTimeout  = 30 * time.Second
)

// Run executes the complete frame test: one solo play-through per simulated
// player, then a ranking check.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting power scan frame test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("framesPerPlayer", config.FramesPerPlayer),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate player frame sequences
	players, err := generatePlayers(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("frame generation failed: %w", err)
	}

	// Step 3: Play each player through a solo session
	for i := range players {
		if err := runPlayer(ctx, config, &players[i], stats); err != nil {
			return fmt.Errorf("player %s failed: %w", players[i].Name, err)
		}
	}

	// Step 4: Fetch and verify the ranking
	if err := verifyRanking(ctx, config, players, stats); err != nil {
		return fmt.Errorf("ranking verification failed: %w", err)
	}

	// Step 5: Save generated frames to file
	if err := savePlayersToFile(ctx, config, players); err != nil {
		logger.Get().Warn(ctx, "failed to save frames to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// runPlayer drives one player through create -> gender -> measure -> name.
func runPlayer(ctx context.Context, config *Config, player *playerRun, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	log.Printf("🎮 Running player %s (%s, %d frames)...", player.Name, player.Gender, len(player.Frames))

	// Create a solo session
	var state sessionState
	status, err := postDecoded(client, config.BaseURL+"/api/session", map[string]string{"mode": "solo"}, &state)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("session create returned status %d", status)
	}

	commandURL := config.BaseURL + "/api/session/" + state.ID + "/command"

	// Select gender and start the measurement window
	if status, err = postDecoded(client, commandURL, map[string]string{"command": "select_gender", "gender": player.Gender}, nil); err != nil || status != http.StatusOK {
		return fmt.Errorf("select_gender failed (status %d): %w", status, err)
	}
	if status, err = postDecoded(client, commandURL, map[string]string{"command": "begin_measurement"}, nil); err != nil || status != http.StatusOK {
		return fmt.Errorf("begin_measurement failed (status %d): %w", status, err)
	}

	// Stream the frames while the window is open
	best, err := streamFrames(config, state.ID, player.Frames, stats)
	if err != nil {
		return fmt.Errorf("frame streaming failed: %w", err)
	}
	if best > stats.BestTotalPower {
		stats.BestTotalPower = best
	}

	// Wait for the window to elapse
	if err := waitForPhase(ctx, client, config, state.ID, "name_prompt"); err != nil {
		return err
	}

	// Confirm the name and retire the session
	if status, err = postDecoded(client, commandURL, map[string]string{"command": "confirm_name", "name": player.Name}, nil); err != nil || status != http.StatusOK {
		return fmt.Errorf("confirm_name failed (status %d): %w", status, err)
	}
	if status, err = postDecoded(client, commandURL, map[string]string{"command": "consume_results"}, nil); err != nil || status != http.StatusOK {
		return fmt.Errorf("consume_results failed (status %d): %w", status, err)
	}

	stats.ResultsSaved++
	log.Printf("✅ Player %s finalized (best total power: %d)", player.Name, best)
	return nil
}

// waitForPhase polls the session until it reaches the wanted phase.
func waitForPhase(ctx context.Context, client *HTTPClient, config *Config, sessionID, want string) error {
	url := config.BaseURL + "/api/session/" + sessionID
	deadline := time.Now().Add(phasePollTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for phase %s: %w", want, ctx.Err())
		case <-time.After(phasePollInterval):
		}

		var state sessionState
		if _, err := getDecoded(client, url, &state); err != nil {
			continue
		}
		if state.Phase == want {
			return nil
		}
	}
	return fmt.Errorf("session %s never reached phase %s", sessionID, want)
}

// verifyRanking checks that every simulated player landed on the board and
// that the board is score-descending.
func verifyRanking(ctx context.Context, config *Config, players []playerRun, stats *Stats) error {
	log.Println("🔍 Verifying ranking...")

	client := newHTTPClient(config.Timeout)
	var entries []rankingEntry
	if _, err := getDecoded(client, config.BaseURL+"/api/get_ranking", &entries); err != nil {
		return fmt.Errorf("failed to fetch ranking: %w", err)
	}
	stats.RankingEntries = len(entries)

	byName := make(map[string]rankingEntry, len(entries))
	for _, entry := range entries {
		byName[entry.Name] = entry
	}
	for _, player := range players {
		if _, ok := byName[player.Name]; !ok {
			return fmt.Errorf("player %s missing from ranking", player.Name)
		}
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].Score > entries[i-1].Score {
			return fmt.Errorf("ranking not properly sorted: entry %d outranks entry %d", i, i-1)
		}
	}

	topN := 10
	if len(entries) < topN {
		topN = len(entries)
	}
	log.Printf("🏆 Top %d on the board:", topN)
	for i := 0; i < topN; i++ {
		log.Printf("   %d. %s - %d", i+1, entries[i].Name, entries[i].Score)
	}

	log.Println("✅ Ranking verification completed")
	return nil
}

// savePlayersToFile saves the generated frame sequences to a JSON file.
func savePlayersToFile(ctx context.Context, config *Config, players []playerRun) error {
	if len(players) == 0 {
		return fmt.Errorf("no players to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_frames_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(players); err != nil {
		return fmt.Errorf("failed to encode players: %w", err)
	}

	logger.Get().Info(ctx, "frames saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("playersSimulated", stats.PlayersSimulated),
		logger.Int("framesGenerated", stats.FramesGenerated),
		logger.Int("framesSent", stats.FramesSent),
		logger.Int("repliesReceived", stats.RepliesReceived),
		logger.Int("parseFailures", stats.ParseFailures),
		logger.Int("resultsSaved", stats.ResultsSaved),
		logger.Int("rankingEntries", stats.RankingEntries),
		logger.Int64("bestTotalPower", stats.BestTotalPower),
		logger.String("duration", stats.Duration.String()))
}
