// ABOUTME: Team task persistence with blocking dependencies and status state machine
// ABOUTME: Completion cascades re-evaluate dependent tasks inside one transaction

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// CreateTask inserts a task. When the initial blocking set contains any task
// that is not completed, the task is created directly as blocked; otherwise
// it starts pending. Blockers are validated against the same rules as
// SetTaskBlockers.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *TeamTask) error {
	if task.ID == "" {
		return fmt.Errorf("%w: task id is required", ErrValidation)
	}
	if task.TeamID == "" {
		return fmt.Errorf("%w: task team is required", ErrValidation)
	}
	if task.Subject == "" {
		return fmt.Errorf("%w: task subject is required", ErrValidation)
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ?`, task.TeamID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("team %q: %w", task.TeamID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking team: %w", err)
	}

	if task.OwnerAgentID != "" {
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, task.OwnerAgentID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("owner agent %q: %w", task.OwnerAgentID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking owner agent: %w", err)
		}
	}

	unresolved, err := validateBlockers(ctx, tx, task.ID, task.TeamID, task.BlockedBy)
	if err != nil {
		return err
	}

	task.Status = TaskStatusPending
	if unresolved {
		task.Status = TaskStatusBlocked
	}

	blockedBy, err := encodeBlockedBy(task.BlockedBy)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_tasks (id, team_id, subject, description, status, owner_agent_id, blocked_by, priority, result, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.TeamID,
		task.Subject,
		nullString(task.Description),
		task.Status,
		nullString(task.OwnerAgentID),
		blockedBy,
		task.Priority,
		nullString(task.Result),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing task: %w", err)
	}

	s.logger.Debug("created task", "id", task.ID, "team", task.TeamID, "status", task.Status)
	return nil
}

// validateBlockers enforces the blocker rules against current state inside tx:
// no self-blocking, every blocker exists, every blocker belongs to teamID.
// Reports whether any blocker is not yet completed.
func validateBlockers(ctx context.Context, tx *sql.Tx, taskID, teamID string, blockerIDs []string) (unresolved bool, err error) {
	for _, blockerID := range blockerIDs {
		if blockerID == taskID {
			return false, fmt.Errorf("task %q: %w", taskID, ErrSelfBlock)
		}

		var blockerTeam, blockerStatus string
		err := tx.QueryRowContext(ctx, `
			SELECT team_id, status FROM team_tasks WHERE id = ?
		`, blockerID).Scan(&blockerTeam, &blockerStatus)
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("blocker %q: %w", blockerID, ErrUnknownBlocker)
		}
		if err != nil {
			return false, fmt.Errorf("checking blocker %q: %w", blockerID, err)
		}

		if blockerTeam != teamID {
			return false, fmt.Errorf("blocker %q: %w", blockerID, ErrCrossTeamBlock)
		}
		if blockerStatus != TaskStatusCompleted {
			unresolved = true
		}
	}
	return unresolved, nil
}

func encodeBlockedBy(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encoding blocked_by: %w", err)
	}
	return string(data), nil
}

func decodeBlockedBy(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("decoding blocked_by: %w", err)
	}
	return ids, nil
}

const taskColumns = `id, team_id, subject, description, status, owner_agent_id, blocked_by, priority, result, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*TeamTask, error) {
	var t TeamTask
	var description, owner, result sql.NullString
	var blockedBy string
	var createdAtStr, updatedAtStr string

	err := row.Scan(&t.ID, &t.TeamID, &t.Subject, &description, &t.Status, &owner, &blockedBy, &t.Priority, &result, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	if description.Valid {
		t.Description = description.String
	}
	if owner.Valid {
		t.OwnerAgentID = owner.String
	}
	if result.Valid {
		t.Result = result.String
	}

	t.BlockedBy, err = decodeBlockedBy(blockedBy)
	if err != nil {
		return nil, err
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

// GetTask retrieves a task by ID.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*TeamTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM team_tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasksByTeam returns a team's tasks ordered by priority (highest first)
// then creation time, with owner display names resolved.
func (s *SQLiteStore) ListTasksByTeam(ctx context.Context, teamID string) ([]*TeamTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.team_id, t.subject, t.description, t.status, t.owner_agent_id,
		       t.blocked_by, t.priority, t.result, t.created_at, t.updated_at,
		       a.name
		FROM team_tasks t
		LEFT JOIN agents a ON a.id = t.owner_agent_id
		WHERE t.team_id = ?
		ORDER BY t.priority DESC, t.created_at ASC, t.id ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying team tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*TeamTask
	for rows.Next() {
		var t TeamTask
		var description, owner, result, ownerName sql.NullString
		var blockedBy string
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&t.ID, &t.TeamID, &t.Subject, &description, &t.Status, &owner,
			&blockedBy, &t.Priority, &result, &createdAtStr, &updatedAtStr, &ownerName); err != nil {
			return nil, fmt.Errorf("scanning team task: %w", err)
		}

		if description.Valid {
			t.Description = description.String
		}
		if owner.Valid {
			t.OwnerAgentID = owner.String
		}
		if result.Valid {
			t.Result = result.String
		}
		if ownerName.Valid {
			t.OwnerName = ownerName.String
		}

		t.BlockedBy, err = decodeBlockedBy(blockedBy)
		if err != nil {
			return nil, err
		}
		t.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		t.UpdatedAt, err = parseTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// SetTaskBlockers replaces a task's blocking set and re-evaluates its status
// in the same transaction. A task with an unresolved blocker becomes blocked;
// a blocked task whose blockers are all completed returns to pending.
// Completed tasks keep their blocking set history but never change status.
func (s *SQLiteStore) SetTaskBlockers(ctx context.Context, taskID string, blockerIDs []string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	task, err := getTaskTx(ctx, tx, taskID)
	if err != nil {
		return err
	}

	unresolved, err := validateBlockers(ctx, tx, taskID, task.TeamID, blockerIDs)
	if err != nil {
		return err
	}

	newStatus := reevaluateStatus(task.Status, unresolved)

	blockedBy, err := encodeBlockedBy(blockerIDs)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE team_tasks SET blocked_by = ?, status = ?, updated_at = ? WHERE id = ?
	`, blockedBy, newStatus, formatTime(time.Now().UTC()), taskID); err != nil {
		return fmt.Errorf("updating task blockers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing blocker update: %w", err)
	}

	s.logger.Debug("set task blockers", "id", taskID, "blockers", len(blockerIDs), "status", newStatus)
	return nil
}

// reevaluateStatus applies the blocking rules to a task's current status.
// Completed tasks are terminal. Unresolved blockers force blocked from any
// non-terminal status; once resolved, a blocked task returns to pending while
// pending/in_progress stay where they are.
func reevaluateStatus(current string, unresolved bool) string {
	if current == TaskStatusCompleted {
		return current
	}
	if unresolved {
		return TaskStatusBlocked
	}
	if current == TaskStatusBlocked {
		return TaskStatusPending
	}
	return current
}

func getTaskTx(ctx context.Context, tx *sql.Tx, id string) (*TeamTask, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM team_tasks WHERE id = ?`, id)
	return scanTask(row)
}

// StartTask moves a pending task to in_progress.
func (s *SQLiteStore) StartTask(ctx context.Context, taskID string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	task, err := getTaskTx(ctx, tx, taskID)
	if err != nil {
		return err
	}
	if task.Status != TaskStatusPending {
		return fmt.Errorf("%w: cannot start task in status %q", ErrValidation, task.Status)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE team_tasks SET status = ?, updated_at = ? WHERE id = ?
	`, TaskStatusInProgress, formatTime(time.Now().UTC()), taskID); err != nil {
		return fmt.Errorf("starting task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing task start: %w", err)
	}

	s.logger.Debug("started task", "id", taskID)
	return nil
}

// CompleteTask marks a task completed and cascades: every task listing it as
// a blocker is re-read and re-evaluated inside the same transaction, so a
// dependent can never be observed blocked after its last blocker committed as
// completed. Returns the ids of tasks that transitioned out of blocked.
func (s *SQLiteStore) CompleteTask(ctx context.Context, taskID string, result string) ([]string, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	task, err := getTaskTx(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	switch task.Status {
	case TaskStatusCompleted:
		return nil, fmt.Errorf("%w: task already completed", ErrValidation)
	case TaskStatusBlocked:
		return nil, fmt.Errorf("%w: cannot complete a blocked task", ErrValidation)
	}

	now := formatTime(time.Now().UTC())
	if _, err := tx.ExecContext(ctx, `
		UPDATE team_tasks SET status = ?, result = ?, updated_at = ? WHERE id = ?
	`, TaskStatusCompleted, nullString(result), now, taskID); err != nil {
		return nil, fmt.Errorf("completing task: %w", err)
	}

	// Dependents are found through the JSON blocking sets; their blocker
	// status is re-read here, after the completion above, never from a cache.
	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT t.id
		FROM team_tasks t, json_each(t.blocked_by) b
		WHERE b.value = ? AND t.status = ?
	`, taskID, TaskStatusBlocked)
	if err != nil {
		return nil, fmt.Errorf("querying dependent tasks: %w", err)
	}

	var dependents []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning dependent id: %w", err)
		}
		dependents = append(dependents, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating dependents: %w", err)
	}
	rows.Close()

	var unblocked []string
	for _, depID := range dependents {
		dep, err := getTaskTx(ctx, tx, depID)
		if err != nil {
			return nil, fmt.Errorf("re-reading dependent %q: %w", depID, err)
		}

		unresolved, err := validateBlockers(ctx, tx, dep.ID, dep.TeamID, dep.BlockedBy)
		if err != nil {
			return nil, fmt.Errorf("re-evaluating dependent %q: %w", depID, err)
		}
		if unresolved {
			continue
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE team_tasks SET status = ?, updated_at = ? WHERE id = ?
		`, TaskStatusPending, now, depID); err != nil {
			return nil, fmt.Errorf("unblocking dependent %q: %w", depID, err)
		}
		unblocked = append(unblocked, depID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing task completion: %w", err)
	}

	slices.Sort(unblocked)
	s.logger.Debug("completed task", "id", taskID, "unblocked", len(unblocked))
	return unblocked, nil
}

// ReassignTask changes a task's owner without touching its status. An empty
// ownerAgentID clears the owner.
func (s *SQLiteStore) ReassignTask(ctx context.Context, taskID, ownerAgentID string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if ownerAgentID != "" {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, ownerAgentID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("agent %q: %w", ownerAgentID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking owner agent: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE team_tasks SET owner_agent_id = ?, updated_at = ? WHERE id = ?
	`, nullString(ownerAgentID), formatTime(time.Now().UTC()), taskID)
	if err != nil {
		return fmt.Errorf("reassigning task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reassignment: %w", err)
	}

	s.logger.Debug("reassigned task", "id", taskID, "owner", ownerAgentID)
	return nil
}
