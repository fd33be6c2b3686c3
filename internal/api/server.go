// Package api exposes the HTTP surface around the broadcast core: the
// WebSocket entry points, teacher login, a pull-style status endpoint
// that reads a snapshot without joining the broadcast registry, and a
// health check.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"classboard/internal/auth"
	"classboard/internal/config"
	"classboard/internal/state"
	"classboard/internal/websocket"
	"classboard/pkg/types"
)

type Server struct {
	router chi.Router
	gate   *auth.Gate
	store  *state.Store
}

// NewServer assembles the router. The WebSocket handler is mounted here
// so one listener serves both the API and the persistent connections.
func NewServer(gate *auth.Gate, store *state.Store, ws *websocket.Handler, cfg *config.HTTPConfig) *Server {
	s := &Server{
		router: chi.NewRouter(),
		gate:   gate,
		store:  store,
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/api/login", s.handleLogin)
	s.router.Get("/api/status", s.handleStatus)
	s.router.Get("/ws/student", ws.HandleStudent)
	s.router.Get("/ws/teacher", ws.HandleTeacher)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Credential string `json:"credential"`
}

type loginResponse struct {
	Identity string `json:"identity"`
	Token    string `json:"token,omitempty"`
}

// handleLogin checks a credential against the gate and, when token
// issuance is configured, returns a session token the teacher client can
// present at WebSocket connect instead of the raw credential.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := s.gate.Authorize(r.Context(), req.Credential)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := loginResponse{Identity: identity.Name}
	if issuer := s.gate.Tokens(); issuer != nil {
		token, err := issuer.Issue(identity)
		if err != nil {
			log.Printf("token issuance failed: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp.Token = token
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Feedback  []types.Reaction `json:"feedback"`
	Questions []types.Question `json:"questions"`
}

// handleStatus is the one-shot snapshot accessor: a privileged read of
// the current state for clients that do not hold a WebSocket open.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := s.gate.Authorize(r.Context(), requestCredential(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snap := s.store.Snapshot()
	resp := statusResponse{Feedback: snap.Reactions, Questions: snap.Questions}
	if resp.Feedback == nil {
		resp.Feedback = []types.Reaction{}
	}
	if resp.Questions == nil {
		resp.Questions = []types.Question{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestCredential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
