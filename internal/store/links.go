// ABOUTME: Agent link persistence for directed agent-to-agent relationships
// ABOUTME: Links are structural only; cycles and mutual edges are permitted

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateLink records a directed edge between two existing agents.
// Returns ErrNotFound when either endpoint does not resolve.
func (s *SQLiteStore) CreateLink(ctx context.Context, link *AgentLink) error {
	if link.ID == "" {
		return fmt.Errorf("%w: link id is required", ErrValidation)
	}
	if link.SourceAgentID == "" || link.TargetAgentID == "" {
		return fmt.Errorf("%w: link endpoints are required", ErrValidation)
	}
	if link.Kind == "" {
		return fmt.Errorf("%w: link kind is required", ErrValidation)
	}

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range []string{link.SourceAgentID, link.TargetAgentID} {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM agents WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("agent %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking link endpoint: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_links (id, source_agent_id, target_agent_id, kind, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		link.ID,
		link.SourceAgentID,
		link.TargetAgentID,
		link.Kind,
		nullString(link.Metadata),
		formatTime(link.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing link: %w", err)
	}

	s.logger.Debug("created link", "id", link.ID, "source", link.SourceAgentID, "target", link.TargetAgentID, "kind", link.Kind)
	return nil
}

func scanLink(row interface{ Scan(...any) error }) (*AgentLink, error) {
	var l AgentLink
	var metadata sql.NullString
	var createdAtStr string

	err := row.Scan(&l.ID, &l.SourceAgentID, &l.TargetAgentID, &l.Kind, &metadata, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning link: %w", err)
	}

	if metadata.Valid {
		l.Metadata = metadata.String
	}
	l.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &l, nil
}

// GetLink retrieves a link by ID.
func (s *SQLiteStore) GetLink(ctx context.Context, id string) (*AgentLink, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_agent_id, target_agent_id, kind, metadata, created_at
		FROM agent_links WHERE id = ?
	`, id)
	return scanLink(row)
}

func (s *SQLiteStore) listLinks(ctx context.Context, column, agentID string) ([]*AgentLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_agent_id, target_agent_id, kind, metadata, created_at
		FROM agent_links
		WHERE `+column+` = ?
		ORDER BY created_at ASC, id ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer rows.Close()

	var links []*AgentLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ListLinksFrom returns all links where agentID is the source.
func (s *SQLiteStore) ListLinksFrom(ctx context.Context, agentID string) ([]*AgentLink, error) {
	return s.listLinks(ctx, "source_agent_id", agentID)
}

// ListLinksTo returns all links where agentID is the target.
func (s *SQLiteStore) ListLinksTo(ctx context.Context, agentID string) ([]*AgentLink, error) {
	return s.listLinks(ctx, "target_agent_id", agentID)
}

// DeleteLink removes a link.
// Returns ErrNotFound if the link doesn't exist.
func (s *SQLiteStore) DeleteLink(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agent_links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted link", "id", id)
	return nil
}
