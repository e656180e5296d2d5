// ABOUTME: Background retrier that re-embeds agents flagged stale or missing
// ABOUTME: Guards against clobbering rows whose text changed mid-flight

package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/coven-directory/internal/store"
)

// Retrier periodically re-embeds agents whose embedding_state is stale or
// missing. Upserts that lose the provider race leave rows flagged; this is
// the out-of-band recovery path.
type Retrier struct {
	store    store.AgentStore
	provider Provider
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

// NewRetrier creates a retrier. interval defaults to one minute, batch to 20.
func NewRetrier(s store.AgentStore, provider Provider, interval time.Duration, batch int) *Retrier {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 20
	}
	return &Retrier{
		store:    s,
		provider: provider,
		interval: interval,
		batch:    batch,
		logger:   slog.Default().With("component", "embedding-retrier"),
	}
}

// Run ticks until ctx is cancelled.
func (r *Retrier) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("embedding retrier started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("embedding retrier stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep re-embeds one batch of flagged agents. Failures are logged and left
// flagged for the next sweep.
func (r *Retrier) Sweep(ctx context.Context) {
	agents, err := r.store.ListStaleEmbeddings(ctx, r.batch)
	if err != nil {
		r.logger.Error("listing stale embeddings", "error", err)
		return
	}

	for _, agent := range agents {
		vec, err := r.provider.Embed(ctx, agent.Name+"\n"+agent.Frontmatter)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				r.logger.Warn("provider still unavailable, leaving flagged", "agent", agent.ID)
				return // no point hammering a down provider this sweep
			}
			r.logger.Error("re-embedding agent", "agent", agent.ID, "error", err)
			continue
		}

		// The updated_at guard drops the write if the text changed while we
		// were embedding; the newer revision carries its own stale flag.
		err = r.store.UpdateEmbedding(ctx, agent.ID, Encode(vec), agent.UpdatedAt)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			r.logger.Error("storing retried embedding", "agent", agent.ID, "error", err)
			continue
		}
		if err == nil {
			r.logger.Debug("recovered embedding", "agent", agent.ID)
		}
	}
}
