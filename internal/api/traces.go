// ABOUTME: Trace forest handlers
// ABOUTME: Ancestor and child walks are streamed from the lazy iterators

package api

import (
	"net/http"
	"time"

	"github.com/2389/coven-directory/internal/store"
)

// CreateTraceRequest is the JSON request body for POST /api/traces.
type CreateTraceRequest struct {
	ID            string `json:"id,omitempty"`
	ParentTraceID string `json:"parent_trace_id,omitempty"`
	Payload       string `json:"payload,omitempty"`
}

// TraceResponse is the JSON shape of one trace.
type TraceResponse struct {
	ID            string `json:"id"`
	ParentTraceID string `json:"parent_trace_id,omitempty"`
	Payload       string `json:"payload,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func traceResponse(t *store.Trace) TraceResponse {
	return TraceResponse{
		ID:            t.ID,
		ParentTraceID: t.ParentTraceID,
		Payload:       t.Payload,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339Nano),
	}
}

// handleCreateTrace handles POST /api/traces.
func (s *Server) handleCreateTrace(w http.ResponseWriter, r *http.Request) {
	var req CreateTraceRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.traces.Create(r.Context(), req.ID, req.ParentTraceID, req.Payload)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, traceResponse(created))
}

// handleGetTrace handles GET /api/traces/{id}.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	found, err := s.traces.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, traceResponse(found))
}

// handleTraceChildren handles GET /api/traces/{id}/children.
func (s *Server) handleTraceChildren(w http.ResponseWriter, r *http.Request) {
	children, err := s.traces.Children(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := make([]TraceResponse, 0, len(children))
	for _, c := range children {
		response = append(response, traceResponse(c))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleTraceAncestors handles GET /api/traces/{id}/ancestors. Ancestors are
// ordered nearest first and end at the root.
func (s *Server) handleTraceAncestors(w http.ResponseWriter, r *http.Request) {
	response := []TraceResponse{}
	for ancestor, err := range s.traces.Ancestors(r.Context(), r.PathValue("id")) {
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		response = append(response, traceResponse(ancestor))
	}
	s.writeJSON(w, http.StatusOK, response)
}
