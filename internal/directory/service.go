// ABOUTME: Directory service for agent records and their derived search state
// ABOUTME: Owns the upsert/delete policy and degrades when embeddings fail

package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-directory/internal/embedding"
	"github.com/2389/coven-directory/internal/searchcache"
	"github.com/2389/coven-directory/internal/store"
)

// Service coordinates the agent store, the embedding provider, and the search
// result cache.
type Service struct {
	store        store.AgentStore
	embedder     embedding.Provider
	cache        *searchcache.Cache
	embedTimeout time.Duration

	lexWeight float64
	semWeight float64

	logger *slog.Logger
}

// Options configures a directory Service.
type Options struct {
	// EmbedTimeout bounds each provider call; zero means 10 seconds.
	EmbedTimeout time.Duration

	// LexicalWeight and SemanticWeight are the default score weights used by
	// Search. They are normalized to sum to 1; both zero means an even split.
	LexicalWeight  float64
	SemanticWeight float64

	// CacheTTL and CacheSize size the search result cache; zero disables it.
	CacheTTL  time.Duration
	CacheSize int
}

// NewService creates a directory service.
func NewService(s store.AgentStore, embedder embedding.Provider, opts Options) *Service {
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 10 * time.Second
	}
	if opts.LexicalWeight == 0 && opts.SemanticWeight == 0 {
		opts.LexicalWeight, opts.SemanticWeight = 0.5, 0.5
	}

	var cache *searchcache.Cache
	if opts.CacheTTL > 0 && opts.CacheSize > 0 {
		cache = searchcache.New(opts.CacheTTL, opts.CacheSize)
	}

	return &Service{
		store:        s,
		embedder:     embedder,
		cache:        cache,
		embedTimeout: opts.EmbedTimeout,
		lexWeight:    opts.LexicalWeight,
		semWeight:    opts.SemanticWeight,
		logger:       slog.Default().With("component", "directory"),
	}
}

// Close releases the search cache.
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// UpsertAgent creates or updates an agent record. Unchanged text is a no-op:
// the stored lexical vector stays byte-identical and the provider is not
// called. Changed text always refreshes the lexical vector; the embedding is
// refreshed too unless the provider fails, in which case the old vector is
// kept, the row is flagged stale (missing when no vector ever existed), and
// degraded is reported true.
func (s *Service) UpsertAgent(ctx context.Context, id, name, frontmatter string) (agent *store.Agent, degraded bool, err error) {
	if id == "" {
		return nil, false, fmt.Errorf("%w: agent id is required", store.ErrValidation)
	}
	if name == "" {
		return nil, false, fmt.Errorf("%w: agent name is required", store.ErrValidation)
	}

	existing, err := s.store.GetAgent(ctx, id)
	if err != nil && err != store.ErrNotFound {
		return nil, false, err
	}

	if existing != nil && existing.Name == name && existing.Frontmatter == frontmatter {
		return existing, existing.EmbeddingState != store.EmbeddingStateCurrent, nil
	}

	agent = &store.Agent{
		ID:          id,
		Name:        name,
		Frontmatter: frontmatter,
	}
	if existing != nil {
		agent.CreatedAt = existing.CreatedAt
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	vec, embedErr := s.embedder.Embed(embedCtx, name+"\n"+frontmatter)
	cancel()

	if embedErr != nil {
		// Degrade: keep whatever vector we had and flag the row for the
		// retrier. The text update must not be lost over search quality.
		degraded = true
		agent.EmbeddingState = store.EmbeddingStateMissing
		if existing != nil && len(existing.Embedding) > 0 {
			agent.Embedding = existing.Embedding
			agent.EmbeddingState = store.EmbeddingStateStale
		}
		s.logger.Warn("embedding unavailable, upserting degraded", "agent", id, "error", embedErr)
	} else {
		agent.Embedding = embedding.Encode(vec)
		agent.EmbeddingState = store.EmbeddingStateCurrent
	}

	if err := s.store.UpsertAgent(ctx, agent); err != nil {
		return nil, false, err
	}
	s.invalidate()
	return agent, degraded, nil
}

// GetAgent looks up one agent record.
func (s *Service) GetAgent(ctx context.Context, id string) (*store.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// ListAgents lists agents by most recent update.
func (s *Service) ListAgents(ctx context.Context, limit int) ([]*store.Agent, error) {
	return s.store.ListAgents(ctx, limit)
}

// DeleteAgent removes an agent. Agents referenced by links, teams, or tasks
// cannot be deleted; the references must be removed first.
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	if err := s.store.DeleteAgent(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// invalidate flushes cached rankings after any agent mutation.
func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}
