// Package api provides the pad's HTTP status API and live event feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/protocol"
)

// StatusSource reports the pad's current state.
type StatusSource interface {
	Status() protocol.StatusPayload
}

// Server provides the HTTP API
type Server struct {
	logger     zerolog.Logger
	source     StatusSource
	token      string
	wsMgr      *WSManager
	httpServer *http.Server
}

// NewServer creates a new API server. An empty token disables authentication.
func NewServer(source StatusSource, token string) *Server {
	s := &Server{
		logger: log.With().Str("module", "api").Logger(),
		source: source,
		token:  token,
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/subscribers", s.handleSubscribers).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.wsMgr.handleWebSocket)

	router.Use(s.recoverMiddleware, s.authMiddleware)
	return router
}

// Start serves the API on addr. It blocks until Shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Err(err).Str("address", addr).Msg("listen failed")
		return err
	}
	return s.Serve(ln)
}

// Serve serves the API on an existing listener. It blocks until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("address", ln.Addr().String()).Msg("api listening")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Err(err).Msg("api server stopped")
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects feed clients
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wsMgr.stop()
	return err
}

// Broadcast sends a message to every feed client
func (s *Server) Broadcast(msg protocol.Message) {
	s.wsMgr.Broadcast(msg)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("request")

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		// If token is configured, verify it
		if s.token != "" {
			authHeader := r.Header.Get("Authorization")
			expectedAuth := "Bearer " + s.token

			if authHeader != expectedAuth && r.URL.Query().Get("token") != s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.source.Status())
}

// handleSubscribers handles GET /api/subscribers
func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	subs := s.source.Status().Subscribers
	if subs == nil {
		subs = []string{}
	}
	writeJSON(w, subs)
}
