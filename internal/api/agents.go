// ABOUTME: Agent, search, and link handlers
// ABOUTME: Upserts report embedding degradation in the response, never as an error

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-directory/internal/directory"
	"github.com/2389/coven-directory/internal/store"
)

// UpsertAgentRequest is the JSON request body for POST /api/agents.
type UpsertAgentRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Frontmatter string `json:"frontmatter,omitempty"`
}

// AgentResponse is the JSON shape of one agent record.
type AgentResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Frontmatter    string `json:"frontmatter,omitempty"`
	EmbeddingState string `json:"embedding_state"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// UpsertAgentResponse is the JSON response for POST /api/agents. Degraded is
// true when the embedding provider was unavailable and the record was stored
// with a stale vector.
type UpsertAgentResponse struct {
	Agent    AgentResponse `json:"agent"`
	Degraded bool          `json:"degraded"`
}

// SearchHitResponse is one ranked result in GET /api/search.
type SearchHitResponse struct {
	Agent         AgentResponse `json:"agent"`
	Score         float64       `json:"score"`
	LexicalScore  float64       `json:"lexical_score"`
	SemanticScore float64       `json:"semantic_score"`
}

// SearchResponse is the JSON response for GET /api/search.
type SearchResponse struct {
	Results  []SearchHitResponse `json:"results"`
	Degraded bool                `json:"degraded"`
}

// CreateLinkRequest is the JSON request body for POST /api/links.
type CreateLinkRequest struct {
	SourceAgentID string `json:"source_agent_id"`
	TargetAgentID string `json:"target_agent_id"`
	Kind          string `json:"kind"`
	Metadata      string `json:"metadata,omitempty"`
}

// LinkResponse is the JSON shape of one agent link.
type LinkResponse struct {
	ID            string `json:"id"`
	SourceAgentID string `json:"source_agent_id"`
	TargetAgentID string `json:"target_agent_id"`
	Kind          string `json:"kind"`
	Metadata      string `json:"metadata,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func agentResponse(a *store.Agent) AgentResponse {
	return AgentResponse{
		ID:             a.ID,
		Name:           a.Name,
		Frontmatter:    a.Frontmatter,
		EmbeddingState: a.EmbeddingState,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      a.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func linkResponse(l *store.AgentLink) LinkResponse {
	return LinkResponse{
		ID:            l.ID,
		SourceAgentID: l.SourceAgentID,
		TargetAgentID: l.TargetAgentID,
		Kind:          l.Kind,
		Metadata:      l.Metadata,
		CreatedAt:     l.CreatedAt.Format(time.RFC3339Nano),
	}
}

// handleUpsertAgent handles POST /api/agents.
func (s *Server) handleUpsertAgent(w http.ResponseWriter, r *http.Request) {
	var req UpsertAgentRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	agent, degraded, err := s.directory.UpsertAgent(r.Context(), req.ID, req.Name, req.Frontmatter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, UpsertAgentResponse{
		Agent:    agentResponse(agent),
		Degraded: degraded,
	})
}

// handleListAgents handles GET /api/agents.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 100)
	agents, err := s.directory.ListAgents(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		response = append(response, agentResponse(a))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleGetAgent handles GET /api/agents/{id}.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.directory.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agentResponse(agent))
}

// handleDeleteAgent handles DELETE /api/agents/{id}. Agents still referenced
// by links, teams, or tasks return 409.
func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.directory.DeleteAgent(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSearch handles GET /api/search?q=&limit=&lexical_weight=&semantic_weight=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.sendJSONError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	opts := directory.SearchOptions{
		LexicalWeight:  parseFloatParam(r, "lexical_weight"),
		SemanticWeight: parseFloatParam(r, "semantic_weight"),
	}

	result, err := s.directory.Search(r.Context(), query, parseIntParam(r, "limit", 10), opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := SearchResponse{
		Results:  make([]SearchHitResponse, 0, len(result.Hits)),
		Degraded: result.Degraded,
	}
	for _, hit := range result.Hits {
		response.Results = append(response.Results, SearchHitResponse{
			Agent:         agentResponse(hit.Agent),
			Score:         hit.Score,
			LexicalScore:  hit.LexicalScore,
			SemanticScore: hit.SemanticScore,
		})
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleCreateLink handles POST /api/links.
func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	link := &store.AgentLink{
		ID:            uuid.NewString(),
		SourceAgentID: req.SourceAgentID,
		TargetAgentID: req.TargetAgentID,
		Kind:          req.Kind,
		Metadata:      req.Metadata,
	}
	if err := s.links.CreateLink(r.Context(), link); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, linkResponse(link))
}

// handleDeleteLink handles DELETE /api/links/{id}.
func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := s.links.DeleteLink(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAgentLinks handles GET /api/agents/{id}/links?direction=from|to.
// The default direction is "from".
func (s *Server) handleAgentLinks(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	var links []*store.AgentLink
	var err error
	switch direction := r.URL.Query().Get("direction"); direction {
	case "", "from":
		links, err = s.links.ListLinksFrom(r.Context(), agentID)
	case "to":
		links, err = s.links.ListLinksTo(r.Context(), agentID)
	default:
		s.sendJSONError(w, http.StatusBadRequest, "direction must be from or to")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		response = append(response, linkResponse(l))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// parseIntParam reads an integer query parameter, falling back on absence or
// garbage.
func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// parseFloatParam reads a float query parameter; zero means unset.
func parseFloatParam(r *http.Request, name string) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return 0
	}
	return v
}
