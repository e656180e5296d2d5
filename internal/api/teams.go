// ABOUTME: Team, membership, and task handlers
// ABOUTME: Task completion responses carry the ids the cascade unblocked

package api

import (
	"net/http"
	"time"

	"github.com/2389/coven-directory/internal/store"
	"github.com/2389/coven-directory/internal/team"
)

// CreateTeamRequest is the JSON request body for POST /api/teams.
type CreateTeamRequest struct {
	Name        string `json:"name"`
	LeadAgentID string `json:"lead_agent_id"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
}

// TeamResponse is the JSON shape of one team.
type TeamResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	LeadAgentID string `json:"lead_agent_id"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// MemberResponse is the JSON shape of one team membership.
type MemberResponse struct {
	AgentID  string `json:"agent_id"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

// AddMemberRequest is the JSON request body for POST /api/teams/{id}/members.
type AddMemberRequest struct {
	AgentID string `json:"agent_id"`
}

// CreateTaskRequest is the JSON request body for POST /api/tasks.
type CreateTaskRequest struct {
	TeamID       string   `json:"team_id"`
	Subject      string   `json:"subject"`
	Description  string   `json:"description,omitempty"`
	OwnerAgentID string   `json:"owner_agent_id,omitempty"`
	BlockedBy    []string `json:"blocked_by,omitempty"`
	Priority     int      `json:"priority,omitempty"`
}

// TaskResponse is the JSON shape of one team task.
type TaskResponse struct {
	ID           string   `json:"id"`
	TeamID       string   `json:"team_id"`
	Subject      string   `json:"subject"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	OwnerAgentID string   `json:"owner_agent_id,omitempty"`
	OwnerName    string   `json:"owner_name,omitempty"`
	BlockedBy    []string `json:"blocked_by,omitempty"`
	Priority     int      `json:"priority"`
	Result       string   `json:"result,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// SetBlockersRequest is the JSON request body for PUT /api/tasks/{id}/blockers.
type SetBlockersRequest struct {
	BlockedBy []string `json:"blocked_by"`
}

// CompleteTaskRequest is the JSON request body for POST /api/tasks/{id}/complete.
type CompleteTaskRequest struct {
	Result string `json:"result,omitempty"`
}

// CompleteTaskResponse is the JSON response for POST /api/tasks/{id}/complete.
// Unblocked lists the tasks this completion moved out of blocked.
type CompleteTaskResponse struct {
	Task      TaskResponse `json:"task"`
	Unblocked []string     `json:"unblocked"`
}

// ReassignTaskRequest is the JSON request body for POST /api/tasks/{id}/reassign.
// An empty owner clears the assignment.
type ReassignTaskRequest struct {
	OwnerAgentID string `json:"owner_agent_id"`
}

func teamResponse(t *store.Team) TeamResponse {
	return TeamResponse{
		ID:          t.ID,
		Name:        t.Name,
		LeadAgentID: t.LeadAgentID,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func taskResponse(t *store.TeamTask) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		TeamID:       t.TeamID,
		Subject:      t.Subject,
		Description:  t.Description,
		Status:       t.Status,
		OwnerAgentID: t.OwnerAgentID,
		OwnerName:    t.OwnerName,
		BlockedBy:    t.BlockedBy,
		Priority:     t.Priority,
		Result:       t.Result,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:    t.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// handleCreateTeam handles POST /api/teams.
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.teams.CreateTeam(r.Context(), req.Name, req.LeadAgentID, req.Description, req.CreatedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, teamResponse(created))
}

// handleListTeams handles GET /api/teams.
func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.teams.ListTeams(r.Context(), parseIntParam(r, "limit", 100))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		response = append(response, teamResponse(t))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleGetTeam handles GET /api/teams/{id}.
func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	found, err := s.teams.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, teamResponse(found))
}

// handleArchiveTeam handles POST /api/teams/{id}/archive.
func (s *Server) handleArchiveTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.teams.ArchiveTeam(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddMember handles POST /api/teams/{id}/members.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.teams.AddMember(r.Context(), r.PathValue("id"), req.AgentID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRemoveMember handles DELETE /api/teams/{id}/members/{agent}.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := s.teams.RemoveMember(r.Context(), r.PathValue("id"), r.PathValue("agent")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListMembers handles GET /api/teams/{id}/members.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.teams.ListMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		response = append(response, MemberResponse{
			AgentID:  m.AgentID,
			Role:     m.Role,
			JoinedAt: m.JoinedAt.Format(time.RFC3339Nano),
		})
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleListTasks handles GET /api/teams/{id}/tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.teams.ListTasks(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		response = append(response, taskResponse(t))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleCreateTask handles POST /api/tasks.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.teams.CreateTask(r.Context(), team.TaskParams{
		TeamID:       req.TeamID,
		Subject:      req.Subject,
		Description:  req.Description,
		OwnerAgentID: req.OwnerAgentID,
		BlockedBy:    req.BlockedBy,
		Priority:     req.Priority,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, taskResponse(created))
}

// handleGetTask handles GET /api/tasks/{id}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	found, err := s.teams.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, taskResponse(found))
}

// handleSetBlockers handles PUT /api/tasks/{id}/blockers.
func (s *Server) handleSetBlockers(w http.ResponseWriter, r *http.Request) {
	var req SetBlockersRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.teams.SetBlockers(r.Context(), r.PathValue("id"), req.BlockedBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, taskResponse(updated))
}

// handleStartTask handles POST /api/tasks/{id}/start.
func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	started, err := s.teams.StartTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, taskResponse(started))
}

// handleCompleteTask handles POST /api/tasks/{id}/complete.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req CompleteTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	completed, unblocked, err := s.teams.CompleteTask(r.Context(), r.PathValue("id"), req.Result)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if unblocked == nil {
		unblocked = []string{}
	}
	s.writeJSON(w, http.StatusOK, CompleteTaskResponse{
		Task:      taskResponse(completed),
		Unblocked: unblocked,
	})
}

// handleReassignTask handles POST /api/tasks/{id}/reassign.
func (s *Server) handleReassignTask(w http.ResponseWriter, r *http.Request) {
	var req ReassignTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.teams.ReassignTask(r.Context(), r.PathValue("id"), req.OwnerAgentID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, taskResponse(updated))
}
