package handler

import (
	"net/http"

	"github.com/mcoot/holdem-lobby/internal/api/middleware"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/realtime"
	"github.com/mcoot/holdem-lobby/internal/services/registry"
	"github.com/mcoot/holdem-lobby/internal/services/session"
)

// Streamer serves one live connection for a member of a session
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, sess *session.Session, identity model.Identity)
}

var (
	_ Streamer = (*realtime.WSGateway)(nil)
	_ Streamer = (*realtime.SSEStreamer)(nil)
)

// StreamHandler hands authenticated members over to a live transport
type StreamHandler struct {
	registry registry.RegistryInterface
	ws       Streamer
	sse      Streamer
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(reg registry.RegistryInterface, ws, sse Streamer) *StreamHandler {
	return &StreamHandler{
		registry: reg,
		ws:       ws,
		sse:      sse,
	}
}

// WebSocket handles GET /api/v1/sessions/{id}/ws
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.serve(h.ws, w, r)
}

// Events handles GET /api/v1/sessions/{id}/events
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	h.serve(h.sse, w, r)
}

// serve rejects outsiders before the transport upgrades the request so
// they get a plain JSON error
func (h *StreamHandler) serve(s Streamer, w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	sess, err := h.registry.GetMemberSession(sessionID(r), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	s.Serve(w, r, sess, identity)
}
