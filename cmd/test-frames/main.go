package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/powerscan/internal/testframes"
)

// Default configuration constants.
const (
	defaultPlayers       = 4
	defaultFrames        = 60
	defaultFrameInterval = 50 * time.Millisecond
	defaultTimeout       = 30 * time.Second
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players    = flag.Int("players", defaultPlayers, "Number of simulated players")
		frames     = flag.Int("frames", defaultFrames, "Frames streamed per measurement window")
		interval   = flag.Duration("interval", defaultFrameInterval, "Delay between frames")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated frames (default: generated_frames_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testframes.ShowHelp()
		return
	}

	// Setup logging
	if err := testframes.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	// Create test configuration
	config := &testframes.Config{
		BaseURL:         *baseURL,
		Players:         *players,
		FramesPerPlayer: *frames,
		FrameInterval:   *interval,
		Timeout:         *timeout,
		OutputFile:      *outputFile,
		LogFile:         *logFile,
		Verbose:         *verbose,
	}

	// Run the test
	if err := testframes.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
