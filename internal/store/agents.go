// ABOUTME: Agent record persistence with derived full-text index maintenance
// ABOUTME: Upserts recompute tsv and the FTS5 rows in the same transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertAgent inserts or replaces an agent record. The tsv column is derived
// from Name and Frontmatter here, inside the write transaction, so the
// full-text index can never reflect older text than the committed row.
func (s *SQLiteStore) UpsertAgent(ctx context.Context, agent *Agent) error {
	if agent.ID == "" {
		return fmt.Errorf("%w: agent id is required", ErrValidation)
	}
	if agent.Name == "" {
		return fmt.Errorf("%w: agent name is required", ErrValidation)
	}

	agent.TSV = LexicalVector(agent.Name, agent.Frontmatter)
	if agent.EmbeddingState == "" {
		agent.EmbeddingState = EmbeddingStateMissing
	}

	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agents (id, name, frontmatter, tsv, embedding, embedding_state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name            = excluded.name,
			frontmatter     = excluded.frontmatter,
			tsv             = excluded.tsv,
			embedding       = excluded.embedding,
			embedding_state = excluded.embedding_state,
			updated_at      = excluded.updated_at
	`,
		agent.ID,
		agent.Name,
		agent.Frontmatter,
		agent.TSV,
		agent.Embedding,
		agent.EmbeddingState,
		formatTime(agent.CreatedAt),
		formatTime(agent.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting agent: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents_fts WHERE agent_id = ?`, agent.ID); err != nil {
		return fmt.Errorf("clearing agent fts row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO agents_fts (agent_id, tsv) VALUES (?, ?)`, agent.ID, agent.TSV); err != nil {
		return fmt.Errorf("inserting agent fts row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing agent upsert: %w", err)
	}

	s.logger.Debug("upserted agent", "id", agent.ID, "embedding_state", agent.EmbeddingState)
	return nil
}

const agentColumns = `id, name, frontmatter, tsv, embedding, embedding_state, created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	var a Agent
	var embedding []byte
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Frontmatter,
		&a.TSV,
		&embedding,
		&a.EmbeddingState,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}

	a.Embedding = embedding

	a.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	a.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &a, nil
}

// GetAgent retrieves an agent by ID.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// GetAgents retrieves a batch of agents keyed by id. Missing ids are simply
// absent from the result map.
func (s *SQLiteStore) GetAgents(ctx context.Context, ids []string) (map[string]*Agent, error) {
	result := make(map[string]*Agent, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result[a.ID] = a
	}
	return result, rows.Err()
}

// ListAgents retrieves agents ordered by most recent update.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListAgents(ctx context.Context, limit int) ([]*Agent, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+agentColumns+` FROM agents ORDER BY updated_at DESC, id ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// DeleteAgent removes an agent and its full-text row. Deletion is refused
// with ErrReferentialConflict while any link, team, membership, or task still
// references the agent.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	refChecks := []struct {
		query string
		what  string
	}{
		{`SELECT 1 FROM agent_links WHERE source_agent_id = ? OR target_agent_id = ? LIMIT 1`, "agent links"},
		{`SELECT 1 FROM teams WHERE lead_agent_id = ? LIMIT 1`, "team lead"},
		{`SELECT 1 FROM team_members WHERE agent_id = ? LIMIT 1`, "team membership"},
		{`SELECT 1 FROM team_tasks WHERE owner_agent_id = ? LIMIT 1`, "task ownership"},
	}

	for _, check := range refChecks {
		args := []any{id}
		if strings.Count(check.query, "?") == 2 {
			args = append(args, id)
		}
		var exists int
		err := tx.QueryRowContext(ctx, check.query, args...).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: %s", ErrReferentialConflict, check.what)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking %s references: %w", check.what, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents_fts WHERE agent_id = ?`, id); err != nil {
		return fmt.Errorf("deleting agent fts row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing agent delete: %w", err)
	}

	s.logger.Debug("deleted agent", "id", id)
	return nil
}

// UpdateEmbedding stores a background-computed embedding, guarded by the
// updated_at the text was read at. A changed row means the embedding was
// computed from superseded text and is discarded.
func (s *SQLiteStore) UpdateEmbedding(ctx context.Context, id string, embedding []byte, expectedUpdatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE agents
		SET embedding = ?, embedding_state = ?
		WHERE id = ? AND updated_at = ?
	`, embedding, EmbeddingStateCurrent, id, formatTime(expectedUpdatedAt))
	if err != nil {
		return fmt.Errorf("updating embedding: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated embedding", "id", id)
	return nil
}

// ListStaleEmbeddings returns agents whose embedding is flagged for retry,
// oldest first.
func (s *SQLiteStore) ListStaleEmbeddings(ctx context.Context, limit int) ([]*Agent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE embedding_state IN (?, ?)
		ORDER BY updated_at ASC
		LIMIT ?
	`, EmbeddingStateStale, EmbeddingStateMissing, limit)
	if err != nil {
		return nil, fmt.Errorf("querying stale embeddings: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// SearchLexical ranks agents against an FTS5 match expression. Scores are
// negated bm25 values, so higher is better.
func (s *SQLiteStore) SearchLexical(ctx context.Context, matchQuery string, limit int) ([]LexicalHit, error) {
	if matchQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, -bm25(agents_fts) AS score
		FROM agents_fts
		WHERE agents_fts MATCH ?
		ORDER BY score DESC
		LIMIT ?
	`, "tsv: ("+matchQuery+")", limit)
	if err != nil {
		return nil, fmt.Errorf("querying full-text index: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.AgentID, &h.Score); err != nil {
			return nil, fmt.Errorf("scanning lexical hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ListEmbeddings returns every stored embedding with its freshness state.
func (s *SQLiteStore) ListEmbeddings(ctx context.Context) ([]EmbeddingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding, embedding_state
		FROM agents
		WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var result []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		if err := rows.Scan(&r.AgentID, &r.Embedding, &r.State); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
