// ABOUTME: Team and task service over the team/task stores
// ABOUTME: Assigns ids, shapes parameters, and logs the unblock cascade

package team

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/coven-directory/internal/store"
)

// Service exposes teams, memberships, and team tasks.
type Service struct {
	teams  store.TeamStore
	tasks  store.TaskStore
	logger *slog.Logger
}

// NewService creates a team service.
func NewService(teams store.TeamStore, tasks store.TaskStore) *Service {
	return &Service{
		teams:  teams,
		tasks:  tasks,
		logger: slog.Default().With("component", "team"),
	}
}

// CreateTeam creates an active team led by leadAgentID. The lead's membership
// row is written in the same transaction as the team.
func (s *Service) CreateTeam(ctx context.Context, name, leadAgentID, description, createdBy string) (*store.Team, error) {
	team := &store.Team{
		ID:          uuid.NewString(),
		Name:        name,
		LeadAgentID: leadAgentID,
		Description: description,
		Status:      store.TeamStatusActive,
		CreatedBy:   createdBy,
	}
	if err := s.teams.CreateTeam(ctx, team); err != nil {
		return nil, err
	}
	s.logger.Info("team created", "team", team.ID, "name", name, "lead", leadAgentID)
	return team, nil
}

func (s *Service) GetTeam(ctx context.Context, id string) (*store.Team, error) {
	return s.teams.GetTeam(ctx, id)
}

func (s *Service) ListTeams(ctx context.Context, limit int) ([]*store.Team, error) {
	return s.teams.ListTeams(ctx, limit)
}

func (s *Service) ArchiveTeam(ctx context.Context, id string) error {
	return s.teams.ArchiveTeam(ctx, id)
}

func (s *Service) AddMember(ctx context.Context, teamID, agentID string) error {
	return s.teams.AddTeamMember(ctx, teamID, agentID)
}

// RemoveMember drops a membership. The lead cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, teamID, agentID string) error {
	return s.teams.RemoveTeamMember(ctx, teamID, agentID)
}

func (s *Service) ListMembers(ctx context.Context, teamID string) ([]*store.TeamMember, error) {
	return s.teams.ListTeamMembers(ctx, teamID)
}

// TaskParams carries the caller-supplied fields of a new task.
type TaskParams struct {
	TeamID       string
	Subject      string
	Description  string
	OwnerAgentID string
	BlockedBy    []string
	Priority     int
}

// CreateTask creates a task. Tasks born with unresolved blockers start
// blocked; everything else starts pending.
func (s *Service) CreateTask(ctx context.Context, params TaskParams) (*store.TeamTask, error) {
	task := &store.TeamTask{
		ID:           uuid.NewString(),
		TeamID:       params.TeamID,
		Subject:      params.Subject,
		Description:  params.Description,
		OwnerAgentID: params.OwnerAgentID,
		BlockedBy:    params.BlockedBy,
		Priority:     params.Priority,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (*store.TeamTask, error) {
	return s.tasks.GetTask(ctx, id)
}

// ListTasks returns a team's tasks ordered by priority then age. The team
// must exist.
func (s *Service) ListTasks(ctx context.Context, teamID string) ([]*store.TeamTask, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.tasks.ListTasksByTeam(ctx, teamID)
}

// SetBlockers replaces a task's blocking set and re-evaluates its status.
func (s *Service) SetBlockers(ctx context.Context, taskID string, blockerIDs []string) (*store.TeamTask, error) {
	if err := s.tasks.SetTaskBlockers(ctx, taskID, blockerIDs); err != nil {
		return nil, err
	}
	return s.tasks.GetTask(ctx, taskID)
}

// StartTask moves a pending task to in_progress.
func (s *Service) StartTask(ctx context.Context, taskID string) (*store.TeamTask, error) {
	if err := s.tasks.StartTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.tasks.GetTask(ctx, taskID)
}

// CompleteTask marks a task completed and returns the tasks its completion
// unblocked. The completion and the cascade commit together.
func (s *Service) CompleteTask(ctx context.Context, taskID, result string) (*store.TeamTask, []string, error) {
	unblocked, err := s.tasks.CompleteTask(ctx, taskID, result)
	if err != nil {
		return nil, nil, err
	}
	if len(unblocked) > 0 {
		s.logger.Info("completion unblocked tasks", "task", taskID, "unblocked", unblocked)
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	return task, unblocked, nil
}

// ReassignTask changes a task's owner without touching its status. An empty
// owner clears the assignment.
func (s *Service) ReassignTask(ctx context.Context, taskID, ownerAgentID string) (*store.TeamTask, error) {
	if err := s.tasks.ReassignTask(ctx, taskID, ownerAgentID); err != nil {
		return nil, err
	}
	return s.tasks.GetTask(ctx, taskID)
}
