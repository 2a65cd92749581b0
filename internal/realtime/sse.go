package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/holdem-lobby/internal/dependencies/random"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/session"
)

// SnapshotEvent is the SSE event name carrying a session snapshot
const SnapshotEvent = "snapshot"

// SSEStreamer serves live session snapshots as server-sent events
type SSEStreamer struct {
	cfg    Config
	random random.Random
	logger *slog.Logger
}

// NewSSEStreamer creates an SSE streamer
func NewSSEStreamer(cfg Config, random random.Random, logger *slog.Logger) *SSEStreamer {
	return &SSEStreamer{
		cfg:    cfg,
		random: random,
		logger: logger.With(slog.String("component", "sse")),
	}
}

// Serve streams snapshots of sess to identity until the client disconnects
func (s *SSEStreamer) Serve(w http.ResponseWriter, r *http.Request, sess *session.Session, identity model.Identity) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	out := newOutbox("sse_"+s.random.Token(), s.cfg.SendQueueSize)
	defer out.close()
	logger := s.logger.With(
		slog.String("session_id", string(sess.ID())),
		slog.String("player_id", string(identity.ID)),
		slog.String("connection", out.ID()),
	)

	ctx := r.Context()
	if err := sess.AttachConnection(ctx, out, identity); err != nil {
		logger.Info("sse attach rejected", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	defer sess.DetachConnection(out.ID(), identity)

	rc := http.NewResponseController(w)
	write := func(p []byte) error {
		if err := rc.SetWriteDeadline(time.Now().Add(s.writeTimeout())); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n")); err != nil {
		logger.Info("sse write failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("sse connected")

	interval := s.cfg.PingInterval
	if interval <= 0 {
		interval = DefaultConfig().PingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case view := <-out.queue:
			data, err := json.Marshal(view)
			if err != nil {
				logger.Error("sse failed to encode snapshot", slog.String("error", err.Error()))
				continue
			}
			if err := write(formatSSEMessage(SnapshotEvent, string(data))); err != nil {
				logger.Info("sse write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			if err := write([]byte(": keepalive\n\n")); err != nil {
				logger.Info("sse write failed", slog.String("error", err.Error()))
				return
			}

		case <-ctx.Done():
			logger.Info("sse disconnected")
			return
		}
	}
}

func (s *SSEStreamer) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout <= 0 {
		return DefaultConfig().WriteTimeout
	}
	return s.cfg.WriteTimeout
}

// formatSSEMessage formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
