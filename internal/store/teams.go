// ABOUTME: Team and membership persistence
// ABOUTME: Enforces the single-lead invariant inside the team creation transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateTeam inserts a team together with its lead membership row. The lead
// agent must exist; the membership row with role "lead" is what keeps the
// single-lead invariant checkable from the team_members table alone.
func (s *SQLiteStore) CreateTeam(ctx context.Context, team *Team) error {
	if team.ID == "" {
		return fmt.Errorf("%w: team id is required", ErrValidation)
	}
	if team.Name == "" {
		return fmt.Errorf("%w: team name is required", ErrValidation)
	}
	if team.LeadAgentID == "" {
		return fmt.Errorf("%w: team lead is required", ErrValidation)
	}

	if team.Status == "" {
		team.Status = TeamStatusActive
	}
	now := time.Now().UTC()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, team.LeadAgentID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("lead agent %q: %w", team.LeadAgentID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking lead agent: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO teams (id, name, lead_agent_id, description, status, settings, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		team.ID,
		team.Name,
		team.LeadAgentID,
		nullString(team.Description),
		team.Status,
		nullString(team.Settings),
		nullString(team.CreatedBy),
		formatTime(team.CreatedAt),
		formatTime(team.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting team: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, agent_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, team.ID, team.LeadAgentID, RoleLead, formatTime(now))
	if err != nil {
		return fmt.Errorf("inserting lead membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing team: %w", err)
	}

	s.logger.Debug("created team", "id", team.ID, "lead", team.LeadAgentID)
	return nil
}

func scanTeam(row interface{ Scan(...any) error }) (*Team, error) {
	var t Team
	var description, settings, createdBy sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(&t.ID, &t.Name, &t.LeadAgentID, &description, &t.Status, &settings, &createdBy, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning team: %w", err)
	}

	if description.Valid {
		t.Description = description.String
	}
	if settings.Valid {
		t.Settings = settings.String
	}
	if createdBy.Valid {
		t.CreatedBy = createdBy.String
	}
	t.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	t.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}

const teamColumns = `id, name, lead_agent_id, description, status, settings, created_by, created_at, updated_at`

// GetTeam retrieves a team by ID.
// Returns ErrNotFound if the team doesn't exist.
func (s *SQLiteStore) GetTeam(ctx context.Context, id string) (*Team, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id)
	return scanTeam(row)
}

// ListTeams retrieves teams ordered by most recent update.
func (s *SQLiteStore) ListTeams(ctx context.Context, limit int) ([]*Team, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+teamColumns+` FROM teams ORDER BY updated_at DESC, id ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// ArchiveTeam marks a team archived.
// Returns ErrNotFound if the team doesn't exist.
func (s *SQLiteStore) ArchiveTeam(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE teams SET status = ?, updated_at = ? WHERE id = ?
	`, TeamStatusArchived, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("archiving team: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("archived team", "id", id)
	return nil
}

// AddTeamMember adds an agent to a team with role "member".
// The lead row is created with the team and cannot be added here.
func (s *SQLiteStore) AddTeamMember(ctx context.Context, teamID, agentID string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ?`, teamID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("team %q: %w", teamID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking team: %w", err)
	}

	err = tx.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, agentID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("agent %q: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking agent: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, agent_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`, teamID, agentID, RoleMember, formatTime(time.Now().UTC()))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: agent %q is already a member", ErrDuplicate, agentID)
		}
		return fmt.Errorf("inserting membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing membership: %w", err)
	}

	s.logger.Debug("added team member", "team", teamID, "agent", agentID)
	return nil
}

// RemoveTeamMember removes a member row. The lead cannot be removed; a team
// always keeps exactly one lead.
func (s *SQLiteStore) RemoveTeamMember(ctx context.Context, teamID, agentID string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var role string
	err = tx.QueryRowContext(ctx, `
		SELECT role FROM team_members WHERE team_id = ? AND agent_id = ?
	`, teamID, agentID).Scan(&role)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking membership: %w", err)
	}
	if role == RoleLead {
		return fmt.Errorf("%w: cannot remove the team lead", ErrValidation)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM team_members WHERE team_id = ? AND agent_id = ?
	`, teamID, agentID); err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing membership delete: %w", err)
	}

	s.logger.Debug("removed team member", "team", teamID, "agent", agentID)
	return nil
}

// ListTeamMembers returns all members of a team, lead first.
func (s *SQLiteStore) ListTeamMembers(ctx context.Context, teamID string) ([]*TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, agent_id, role, joined_at
		FROM team_members
		WHERE team_id = ?
		ORDER BY CASE role WHEN 'lead' THEN 0 ELSE 1 END, joined_at ASC, agent_id ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying team members: %w", err)
	}
	defer rows.Close()

	var members []*TeamMember
	for rows.Next() {
		var m TeamMember
		var joinedAtStr string
		if err := rows.Scan(&m.TeamID, &m.AgentID, &m.Role, &joinedAtStr); err != nil {
			return nil, fmt.Errorf("scanning team member: %w", err)
		}
		m.JoinedAt, err = parseTime(joinedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing joined_at: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}
