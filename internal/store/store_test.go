// ABOUTME: Tests for agent persistence and FTS index maintenance
// ABOUTME: Covers upserts, reference-blocked deletes, and stale embedding listing

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// mustUpsertAgent inserts a minimal agent for tests that need one to exist.
func mustUpsertAgent(t *testing.T, s *SQLiteStore, id, name, frontmatter string) *Agent {
	t.Helper()
	agent := &Agent{
		ID:          id,
		Name:        name,
		Frontmatter: frontmatter,
	}
	require.NoError(t, s.UpsertAgent(context.Background(), agent))
	return agent
}

func TestStore_UpsertAgent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	agent := &Agent{
		ID:          "agent-001",
		Name:        "Refund Agent",
		Frontmatter: "Handles refunds and chargebacks for billing disputes.",
	}
	require.NoError(t, store.UpsertAgent(ctx, agent))

	retrieved, err := store.GetAgent(ctx, "agent-001")
	require.NoError(t, err)
	assert.Equal(t, "Refund Agent", retrieved.Name)
	assert.Equal(t, EmbeddingStateMissing, retrieved.EmbeddingState)
	assert.Contains(t, retrieved.TSV, "refund")
	assert.Contains(t, retrieved.TSV, "chargebacks")
	assert.False(t, retrieved.UpdatedAt.IsZero())
}

func TestStore_UpsertAgent_MissingID(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpsertAgent(context.Background(), &Agent{Name: "No ID"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestStore_UpsertAgent_MissingName(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpsertAgent(context.Background(), &Agent{ID: "agent-001"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestStore_UpsertAgent_UpdateRefreshesTSV(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, store, "agent-001", "Refund Agent", "handles refunds")

	updated := &Agent{
		ID:          "agent-001",
		Name:        "Shipping Agent",
		Frontmatter: "tracks parcels",
	}
	require.NoError(t, store.UpsertAgent(ctx, updated))

	retrieved, err := store.GetAgent(ctx, "agent-001")
	require.NoError(t, err)
	assert.Contains(t, retrieved.TSV, "parcels")
	assert.NotContains(t, retrieved.TSV, "refunds")

	// The full-text index must follow the committed text.
	hits, err := store.SearchLexical(ctx, FTSQuery("parcels"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "agent-001", hits[0].AgentID)

	hits, err = store.SearchLexical(ctx, FTSQuery("refunds"), 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_GetAgent_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetAgent(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetAgents_Batch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, store, "a1", "One", "")
	mustUpsertAgent(t, store, "a2", "Two", "")

	agents, err := store.GetAgents(ctx, []string{"a1", "a2", "missing"})
	require.NoError(t, err)
	assert.Len(t, agents, 2)
	assert.Equal(t, "One", agents["a1"].Name)
	assert.NotContains(t, agents, "missing")
}

func TestStore_DeleteAgent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, store, "agent-001", "Refund Agent", "refunds")

	require.NoError(t, store.DeleteAgent(ctx, "agent-001"))

	_, err := store.GetAgent(ctx, "agent-001")
	require.ErrorIs(t, err, ErrNotFound)

	// FTS row must be gone too.
	hits, err := store.SearchLexical(ctx, FTSQuery("refunds"), 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_DeleteAgent_ReferencedByLink(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, store, "a1", "One", "")
	mustUpsertAgent(t, store, "a2", "Two", "")

	require.NoError(t, store.CreateLink(ctx, &AgentLink{
		ID:            "link-1",
		SourceAgentID: "a1",
		TargetAgentID: "a2",
		Kind:          "delegation",
	}))

	err := store.DeleteAgent(ctx, "a2")
	require.ErrorIs(t, err, ErrReferentialConflict)

	// Still present.
	_, err = store.GetAgent(ctx, "a2")
	require.NoError(t, err)
}

func TestStore_DeleteAgent_ReferencedByTeam(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, store, "lead", "Lead", "")
	require.NoError(t, store.CreateTeam(ctx, &Team{ID: "team-1", Name: "Core", LeadAgentID: "lead"}))

	err := store.DeleteAgent(ctx, "lead")
	require.ErrorIs(t, err, ErrReferentialConflict)
}

func TestStore_UpdateEmbedding_Guard(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	agent := mustUpsertAgent(t, store, "agent-001", "Refund Agent", "refunds")

	embedding := []byte{1, 2, 3, 4}
	require.NoError(t, store.UpdateEmbedding(ctx, "agent-001", embedding, agent.UpdatedAt))

	retrieved, err := store.GetAgent(ctx, "agent-001")
	require.NoError(t, err)
	assert.Equal(t, embedding, retrieved.Embedding)
	assert.Equal(t, EmbeddingStateCurrent, retrieved.EmbeddingState)

	// A stale guard timestamp must not overwrite.
	err = store.UpdateEmbedding(ctx, "agent-001", []byte{9, 9}, agent.UpdatedAt.Add(-time.Hour))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListStaleEmbeddings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	fresh := &Agent{ID: "fresh", Name: "Fresh", Embedding: []byte{1}, EmbeddingState: EmbeddingStateCurrent}
	require.NoError(t, store.UpsertAgent(ctx, fresh))

	stale := &Agent{ID: "stale", Name: "Stale", Embedding: []byte{2}, EmbeddingState: EmbeddingStateStale}
	require.NoError(t, store.UpsertAgent(ctx, stale))

	mustUpsertAgent(t, store, "missing", "Missing", "")

	agents, err := store.ListStaleEmbeddings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, agents, 2)

	ids := []string{agents[0].ID, agents[1].ID}
	assert.Contains(t, ids, "stale")
	assert.Contains(t, ids, "missing")
}

func TestStore_SearchLexical_Ranking(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustUpsertAgent(t, store, "refunder", "Refund Agent", "refund refund refund specialist")
	mustUpsertAgent(t, store, "generalist", "Support Agent", "handles one refund occasionally")
	mustUpsertAgent(t, store, "unrelated", "Crawler", "scrapes the web")

	hits, err := store.SearchLexical(ctx, FTSQuery("refund agent"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "refunder", hits[0].AgentID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestStore_SearchLexical_EmptyQuery(t *testing.T) {
	store := setupTestStore(t)

	hits, err := store.SearchLexical(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_ListEmbeddings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	withVec := &Agent{ID: "a1", Name: "One", Embedding: []byte{1, 2}, EmbeddingState: EmbeddingStateCurrent}
	require.NoError(t, store.UpsertAgent(ctx, withVec))
	mustUpsertAgent(t, store, "a2", "Two", "")

	rows, err := store.ListEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0].AgentID)
	assert.Equal(t, EmbeddingStateCurrent, rows[0].State)
}

func TestStore_Ping(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
