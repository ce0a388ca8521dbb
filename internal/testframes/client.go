package testframes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/powerscan/internal/domain/landmark"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	return c.client.Get(url)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// postDecoded posts a JSON body and decodes the JSON answer into out.
func postDecoded(client *HTTPClient, url string, body, out interface{}) (int, error) {
	resp, err := client.Post(url, body)
	if err != nil {
		return 0, err
	}
	data, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// getDecoded fetches a URL and decodes the JSON answer into out.
func getDecoded(client *HTTPClient, url string, out interface{}) (int, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	data, err := readResponseBody(resp)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// wsURL rewrites the HTTP base URL to the websocket scheme.
func wsURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/ws"
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws"
	default:
		return "ws://" + baseURL + "/ws"
	}
}

// streamFrames pushes one player's frames over the landmark stream and reads
// the per-frame replies. Returns the best total power seen.
func streamFrames(config *Config, sessionID string, frames []landmark.Frame, stats *Stats) (int64, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(config.BaseURL), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to landmark stream: %w", err)
	}
	defer conn.Close()

	var best int64
	for _, frame := range frames {
		msg := map[string]interface{}{
			"type":       "landmarks",
			"landmarks":  frame,
			"session_id": sessionID,
		}
		if err := conn.WriteJSON(msg); err != nil {
			return best, fmt.Errorf("failed to send frame: %w", err)
		}
		stats.FramesSent++

		var reply statsReply
		if err := conn.ReadJSON(&reply); err != nil {
			return best, fmt.Errorf("failed to read reply: %w", err)
		}
		stats.RepliesReceived++
		if reply.Error != "" {
			stats.ParseFailures++
			continue
		}
		if reply.CombatStats.TotalPower > best {
			best = reply.CombatStats.TotalPower
		}

		if config.FrameInterval > 0 {
			time.Sleep(config.FrameInterval)
		}
	}
	return best, nil
}
