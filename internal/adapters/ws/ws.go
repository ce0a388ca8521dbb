// Package ws serves the landmark stream: the kiosk page pushes detector
// frames over a websocket and receives a combat-stats breakdown per frame.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/powerscan/internal/domain/landmark"
	"github.com/okian/powerscan/internal/domain/scoring"
	"github.com/okian/powerscan/internal/framelog"
	"github.com/okian/powerscan/pkg/logger"
	"github.com/okian/powerscan/pkg/metrics"
)

// defaultReadLimit bounds a single websocket message. Frames are a few KB;
// a snapshot data URL can reach a couple of MB.
const defaultReadLimit = 4 << 20

// messageTypeLandmarks is the only message type the stream understands.
const messageTypeLandmarks = "landmarks"

// SessionBinder lets a frame carry a session id so its breakdown feeds the
// measurement window. Implemented by the app service.
type SessionBinder interface {
	// ObserveStats forwards a scored frame to the named session. Errors
	// (unknown session, wrong phase) are not the stream's problem.
	ObserveStats(sessionID string, stats scoring.Breakdown, snapshot string) error

	// GenderFor returns the session's gender selection when the session is
	// live.
	GenderFor(sessionID string) (string, bool)
}

// FrameSink receives telemetry for every scored frame.
type FrameSink interface {
	Enqueue(ctx context.Context, e framelog.Entry) bool
}

// frameMessage is one inbound websocket message.
type frameMessage struct {
	Type      string         `json:"type"`
	Landmarks landmark.Frame `json:"landmarks"`
	SessionID string         `json:"session_id,omitempty"`
	Snapshot  string         `json:"snapshot,omitempty"`
}

// statsReply is the per-frame answer.
type statsReply struct {
	CombatStats scoring.Breakdown `json:"combat_stats"`
	Received    int               `json:"received"`
	Error       string            `json:"error,omitempty"`
}

// Handler upgrades connections and scores their frames. Each connection gets
// its own engine so motion smoothing never leaks between players.
type Handler struct {
	upgrader  websocket.Upgrader
	newEngine func() *scoring.Engine
	sessions  SessionBinder
	frames    FrameSink
	readLimit int64
	log       logger.Logger
	conns     atomic.Int64
}

// NewHandler creates a stream handler with configuration options.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			// The kiosk page and the service are same-host; the kiosk may be
			// served from file:// during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		newEngine: func() *scoring.Engine { return scoring.NewEngine() },
		readLimit: defaultReadLimit,
		log:       logger.Get().Named("ws"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connections returns the number of open stream connections.
func (h *Handler) Connections() int {
	return int(h.conns.Load())
}

// ServeHTTP upgrades the connection and runs the frame loop until the peer
// disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	metrics.UpdateWSConnections(int(h.conns.Add(1)))
	defer func() {
		metrics.UpdateWSConnections(int(h.conns.Add(-1)))
	}()

	conn.SetReadLimit(h.readLimit)
	engine := h.newEngine()
	ctx := r.Context()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(ctx, "websocket read ended", logger.Error(err))
			}
			return
		}
		metrics.RecordWSMessage()

		reply := h.handleMessage(ctx, engine, data)
		if err := conn.WriteJSON(reply); err != nil {
			h.log.Debug(ctx, "websocket write failed", logger.Error(err))
			return
		}
	}
}

// handleMessage scores one inbound message. Bad input never kills the
// connection; the reply just degrades.
func (h *Handler) handleMessage(ctx context.Context, engine *scoring.Engine, data []byte) statsReply {
	var msg frameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.RecordWSParseError()
		metrics.RecordErrorByComponent("ws", "parse_failed")
		return statsReply{CombatStats: engine.Baseline(), Error: "parse_failed"}
	}
	if msg.Type != messageTypeLandmarks {
		return statsReply{CombatStats: engine.Baseline()}
	}

	if msg.SessionID != "" && h.sessions != nil {
		if gender, ok := h.sessions.GenderFor(msg.SessionID); ok {
			engine.SetGender(gender)
		}
	}

	start := time.Now()
	stats := engine.Score(msg.Landmarks, start)
	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	if msg.Landmarks.Detected() {
		metrics.RecordFrameScored()
	} else {
		metrics.RecordFrameNoDetection()
	}

	if msg.SessionID != "" && h.sessions != nil {
		// The session may have left the measuring phase; that is fine.
		_ = h.sessions.ObserveStats(msg.SessionID, stats, msg.Snapshot)
	}

	if h.frames != nil {
		h.frames.Enqueue(ctx, framelog.Entry{
			At:              start,
			BasePower:       stats.BasePower,
			PoseBonus:       stats.PoseBonus,
			ExpressionBonus: stats.ExpressionBonus,
			SpeedBonus:      stats.SpeedBonus,
			TotalPower:      stats.TotalPower,
			LandmarkCount:   len(msg.Landmarks),
		})
	}

	return statsReply{CombatStats: stats, Received: len(msg.Landmarks)}
}
