// Package server exposes the companion over a WebSocket streaming
// protocol plus a buffered HTTP alternative for clients that cannot
// stream. Both feed the same session pipeline.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/carevoice/companion/pkg/session"
)

// Server routes transports onto the session manager.
type Server struct {
	manager    *session.Manager
	log        *slog.Logger
	sampleRate int
	httpSeqs   *httpState

	// baseCtx parents every session created by a transport.
	baseCtx context.Context
}

// New builds a server. ctx bounds the lifetime of all sessions it
// creates.
func New(ctx context.Context, manager *session.Manager, sampleRate int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		manager:    manager,
		log:        log,
		sampleRate: sampleRate,
		httpSeqs:   newHTTPState(),
		baseCtx:    ctx,
	}
}

// Handler returns the HTTP mux for both transports.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	mux.HandleFunc("POST /v1/sessions/{id}/utterance", s.handleUtterance)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.manager.Len(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
