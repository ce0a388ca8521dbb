package testframes

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/powerscan/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the frame test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Power Scan Frame Test Tool
==========================

Drives simulated players through the kiosk: synthetic detector frames over
the landmark stream, a full session per player, then a ranking check.

Usage:
  go run cmd/test-frames/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -players int
        Number of simulated players (default 4)
  -frames int
        Frames streamed per measurement window (default 60)
  -interval duration
        Delay between frames (default 50ms)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated frames (default: generated_frames_TIMESTAMP.json)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run cmd/test-frames/main.go

  # Test with custom parameters
  go run cmd/test-frames/main.go -players 10 -frames 120 -url http://localhost:8080

  # Test with custom log file
  go run cmd/test-frames/main.go -players 2 -log my_test.log
`)
}
