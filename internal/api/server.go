// ABOUTME: HTTP JSON boundary for the directory service
// ABOUTME: Routes, error-to-status mapping, and health endpoints

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/2389/coven-directory/internal/directory"
	"github.com/2389/coven-directory/internal/store"
	"github.com/2389/coven-directory/internal/team"
	"github.com/2389/coven-directory/internal/trace"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers for the directory API.
type Server struct {
	directory *directory.Service
	traces    *trace.Service
	teams     *team.Service
	links     store.LinkStore
	pinger    Pinger
	logger    *slog.Logger
}

// NewServer creates an API server over the given services.
func NewServer(dir *directory.Service, traces *trace.Service, teams *team.Service, links store.LinkStore, pinger Pinger) *Server {
	return &Server{
		directory: dir,
		traces:    traces,
		teams:     teams,
		links:     links,
		pinger:    pinger,
		logger:    slog.Default().With("component", "api"),
	}
}

// RegisterRoutes attaches all API routes to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Health endpoints - no body parsing, plain text
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	// Agents and search
	mux.HandleFunc("POST /api/agents", s.handleUpsertAgent)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)
	mux.HandleFunc("GET /api/search", s.handleSearch)

	// Agent links
	mux.HandleFunc("POST /api/links", s.handleCreateLink)
	mux.HandleFunc("DELETE /api/links/{id}", s.handleDeleteLink)
	mux.HandleFunc("GET /api/agents/{id}/links", s.handleAgentLinks)

	// Traces
	mux.HandleFunc("POST /api/traces", s.handleCreateTrace)
	mux.HandleFunc("GET /api/traces/{id}", s.handleGetTrace)
	mux.HandleFunc("GET /api/traces/{id}/children", s.handleTraceChildren)
	mux.HandleFunc("GET /api/traces/{id}/ancestors", s.handleTraceAncestors)

	// Teams and members
	mux.HandleFunc("POST /api/teams", s.handleCreateTeam)
	mux.HandleFunc("GET /api/teams", s.handleListTeams)
	mux.HandleFunc("GET /api/teams/{id}", s.handleGetTeam)
	mux.HandleFunc("POST /api/teams/{id}/archive", s.handleArchiveTeam)
	mux.HandleFunc("POST /api/teams/{id}/members", s.handleAddMember)
	mux.HandleFunc("DELETE /api/teams/{id}/members/{agent}", s.handleRemoveMember)
	mux.HandleFunc("GET /api/teams/{id}/members", s.handleListMembers)
	mux.HandleFunc("GET /api/teams/{id}/tasks", s.handleListTasks)

	// Tasks
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}/blockers", s.handleSetBlockers)
	mux.HandleFunc("POST /api/tasks/{id}/start", s.handleStartTask)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleCompleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/reassign", s.handleReassignTask)
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unreachable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unrecognized is a 500 and gets logged; the sentinel classes are
// caller errors and are returned with their message.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, store.ErrSelfBlock),
		errors.Is(err, store.ErrCrossTeamBlock),
		errors.Is(err, store.ErrCycleDetected):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrParentNotFound),
		errors.Is(err, store.ErrUnknownBlocker):
		s.sendJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrReferentialConflict),
		errors.Is(err, store.ErrDuplicate):
		s.sendJSONError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody parses a JSON request body into dst. An empty body leaves dst at
// its zero value, so bodyless POSTs like task completion stay legal.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		return errors.New("invalid JSON body")
	}
	return nil
}
