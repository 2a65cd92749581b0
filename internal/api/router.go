package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/holdem-lobby/internal/api/handler"
	"github.com/mcoot/holdem-lobby/internal/api/middleware"
	"github.com/mcoot/holdem-lobby/internal/realtime"
	"github.com/mcoot/holdem-lobby/internal/services/auth"
	"github.com/mcoot/holdem-lobby/internal/services/registry"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	Registry       registry.RegistryInterface
	WSGateway      *realtime.WSGateway
	SSEStreamer    *realtime.SSEStreamer
	MetricsHandler http.Handler
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService)
	sessionHandler := handler.NewSessionHandler(cfg.Registry)
	streamHandler := handler.NewStreamHandler(cfg.Registry, cfg.WSGateway, cfg.SSEStreamer)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)

	// Join code directory
	codes := api.PathPrefix("/codes").Subrouter()
	codes.Use(authMiddleware)
	codes.HandleFunc("", sessionHandler.Codes).Methods(http.MethodGet)
	codes.HandleFunc("/{code}/join", sessionHandler.Join).Methods(http.MethodPost)

	// Session routes (all require auth)
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("", sessionHandler.Create).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}", sessionHandler.Get).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/start", sessionHandler.Start).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/advance", sessionHandler.Advance).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/broadcast", sessionHandler.Broadcast).Methods(http.MethodPost)
	sessions.HandleFunc("/{id}/ws", streamHandler.WebSocket).Methods(http.MethodGet)
	sessions.HandleFunc("/{id}/events", streamHandler.Events).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
