package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/mcoot/holdem-lobby/internal/dependencies/random"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/session"
)

// WSGateway serves live session snapshots over websockets
type WSGateway struct {
	cfg    Config
	random random.Random
	logger *slog.Logger
}

// NewWSGateway creates a websocket gateway
func NewWSGateway(cfg Config, random random.Random, logger *slog.Logger) *WSGateway {
	return &WSGateway{
		cfg:    cfg,
		random: random,
		logger: logger.With(slog.String("component", "ws")),
	}
}

// Serve upgrades the request and streams snapshots of sess to identity
// until either side closes. The connection is always detached on return.
func (g *WSGateway) Serve(w http.ResponseWriter, r *http.Request, sess *session.Session, identity model.Identity) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		g.logger.Warn("ws accept failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	out := newOutbox("ws_"+g.random.Token(), g.cfg.SendQueueSize)
	logger := g.logger.With(
		slog.String("session_id", string(sess.ID())),
		slog.String("player_id", string(identity.ID)),
		slog.String("connection", out.ID()),
	)

	// Clients never send data frames. CloseRead handles control frames
	// and cancels ctx once the peer goes away.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case view := <-out.queue:
				if err := g.write(ctx, conn, view); err != nil {
					logger.Info("ws write failed",
						slog.Int("close_status", int(websocket.CloseStatus(err))),
						slog.String("error", err.Error()),
					)
					return
				}
			}
		}
	}()

	defer out.close()
	if err := sess.AttachConnection(ctx, out, identity); err != nil {
		logger.Info("ws attach rejected", slog.String("error", err.Error()))
		cancel()
		<-writerDone
		_ = conn.Close(websocket.StatusPolicyViolation, "not a member")
		return
	}
	defer sess.DetachConnection(out.ID(), identity)
	logger.Info("ws connected")

	status, reason := g.heartbeat(ctx, conn, logger)

	cancel()
	<-writerDone
	_ = conn.Close(status, reason)
	logger.Info("ws disconnected", slog.String("reason", reason))
}

// heartbeat pings until ctx ends or a ping fails
func (g *WSGateway) heartbeat(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) (websocket.StatusCode, string) {
	interval := g.cfg.PingInterval
	if interval <= 0 {
		interval = DefaultConfig().PingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return websocket.StatusNormalClosure, "bye"
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, g.writeTimeout())
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return websocket.StatusNormalClosure, "bye"
				}
				logger.Info("ws ping failed", slog.String("error", err.Error()))
				return websocket.StatusGoingAway, "heartbeat failed"
			}
		}
	}
}

func (g *WSGateway) write(ctx context.Context, conn *websocket.Conn, view model.SessionView) error {
	writeCtx, cancel := context.WithTimeout(ctx, g.writeTimeout())
	defer cancel()
	return wsjson.Write(writeCtx, conn, view)
}

func (g *WSGateway) writeTimeout() time.Duration {
	if g.cfg.WriteTimeout <= 0 {
		return DefaultConfig().WriteTimeout
	}
	return g.cfg.WriteTimeout
}
