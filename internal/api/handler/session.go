package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/holdem-lobby/internal/api/middleware"
	"github.com/mcoot/holdem-lobby/internal/api/request"
	"github.com/mcoot/holdem-lobby/internal/api/response"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/registry"
)

// maxDelaySeconds is the longest whole-second delay a time.Duration can hold
const maxDelaySeconds = int64(math.MaxInt64 / int64(time.Second))

// SessionHandler handles session lifecycle endpoints
type SessionHandler struct {
	registry registry.RegistryInterface
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(reg registry.RegistryInterface) *SessionHandler {
	return &SessionHandler{
		registry: reg,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	ref, err := h.registry.CreateSession(r.Context(), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, ref)
}

// Join handles POST /api/v1/codes/{code}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())
	code := model.JoinCode(mux.Vars(r)["code"])

	ref, err := h.registry.JoinSession(r.Context(), code, identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, ref)
}

// Codes handles GET /api/v1/codes
func (h *SessionHandler) Codes(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.ActiveCodesFromMap(h.registry.ListActiveCodes()))
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	sess, err := h.registry.GetMemberSession(sessionID(r), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, sess.Snapshot())
}

// Start handles POST /api/v1/sessions/{id}/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.StartCountdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	var delay *time.Duration
	if req.DelaySeconds != nil {
		secs := int64(*req.DelaySeconds)
		if secs < 0 || secs > maxDelaySeconds {
			WriteError(w, fmt.Errorf("%w: %d seconds", model.ErrInvalidDelay, secs))
			return
		}
		d := time.Duration(secs) * time.Second
		delay = &d
	}

	id := sessionID(r)
	if err := h.registry.StartCountdown(r.Context(), id, identity, delay); err != nil {
		WriteError(w, err)
		return
	}

	sess, err := h.registry.GetSession(id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusAccepted, response.CountdownStarted{Session: sess.Snapshot()})
}

// Advance handles POST /api/v1/sessions/{id}/advance
func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	phase, err := h.registry.Advance(r.Context(), sessionID(r), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PhaseAdvanced{Phase: phase})
}

// Broadcast handles POST /api/v1/sessions/{id}/broadcast, pushing a fresh
// snapshot to every attached connection
func (h *SessionHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	sess, err := h.registry.GetMemberSession(sessionID(r), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, sess.Broadcast(r.Context()))
}

func sessionID(r *http.Request) model.SessionID {
	return model.SessionID(mux.Vars(r)["id"])
}
