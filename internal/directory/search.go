// ABOUTME: Hybrid search ranking combining lexical and semantic similarity
// ABOUTME: Scores are min-max normalized per query before weighting

package directory

import (
	"context"
	"fmt"
	"sort"

	"github.com/2389/coven-directory/internal/embedding"
	"github.com/2389/coven-directory/internal/store"
)

// Hit is one ranked search result.
type Hit struct {
	Agent         *store.Agent
	Score         float64
	LexicalScore  float64 // normalized [0,1]
	SemanticScore float64 // normalized [0,1]
}

// SearchResult is a ranked result set. Degraded is true when the query
// embedding could not be computed and ranking fell back to lexical only.
type SearchResult struct {
	Hits     []Hit
	Degraded bool
}

// SearchOptions overrides the service's default score weights for one query.
// Zero values keep the defaults.
type SearchOptions struct {
	LexicalWeight  float64
	SemanticWeight float64
}

// candidate accumulates raw scores for one agent during ranking.
type candidate struct {
	lexRaw, semRaw float64
	hasLex, hasSem bool
}

// Search ranks agents against free-text query, returning at most topK hits in
// descending combined score. Ties break on most recent update, then id, so
// ordering is deterministic.
func (s *Service) Search(ctx context.Context, query string, topK int, opts SearchOptions) (*SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if topK > 100 {
		topK = 100
	}

	lexW, semW := s.lexWeight, s.semWeight
	if opts.LexicalWeight != 0 || opts.SemanticWeight != 0 {
		lexW, semW = opts.LexicalWeight, opts.SemanticWeight
	}
	if total := lexW + semW; total > 0 {
		lexW, semW = lexW/total, semW/total
	} else {
		lexW, semW = 0.5, 0.5
	}

	cacheKey := searchCacheKey(query, topK, lexW, semW)
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			return cached.(*SearchResult), nil
		}
	}

	result := &SearchResult{}
	candidates := make(map[string]*candidate)

	// Lexical leg. A query with no usable tokens simply contributes nothing.
	matchQuery := store.FTSQuery(query)
	if matchQuery != "" {
		hits, err := s.store.SearchLexical(ctx, matchQuery, topK*4)
		if err != nil {
			return nil, fmt.Errorf("lexical search: %w", err)
		}
		for _, h := range hits {
			candidates[h.AgentID] = &candidate{lexRaw: h.Score, hasLex: true}
		}
	}

	// Semantic leg. Provider failure degrades to lexical-only ranking and is
	// surfaced on the result, never hidden.
	queryCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	queryVec, embedErr := s.embedder.Embed(queryCtx, query)
	cancel()

	if embedErr != nil {
		result.Degraded = true
		s.logger.Warn("query embedding unavailable, lexical-only ranking", "error", embedErr)
	} else {
		rows, err := s.store.ListEmbeddings(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading embeddings: %w", err)
		}
		for _, row := range rows {
			vec, err := embedding.Decode(row.Embedding)
			if err != nil {
				s.logger.Error("skipping malformed embedding", "agent", row.AgentID, "error", err)
				continue
			}
			sim := embedding.Cosine(queryVec, vec)
			c, ok := candidates[row.AgentID]
			if !ok {
				c = &candidate{}
				candidates[row.AgentID] = c
			}
			c.semRaw = sim
			c.hasSem = true
		}
	}

	if len(candidates) == 0 {
		s.cachePut(cacheKey, result)
		return result, nil
	}

	normalizeLex := normalizer(candidates, func(c *candidate) (float64, bool) { return c.lexRaw, c.hasLex })
	normalizeSem := normalizer(candidates, func(c *candidate) (float64, bool) { return c.semRaw, c.hasSem })

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	agents, err := s.store.GetAgents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	hits := make([]Hit, 0, len(candidates))
	for id, c := range candidates {
		agent, ok := agents[id]
		if !ok {
			continue // deleted between legs; snapshot reads make this rare
		}

		var lexNorm, semNorm float64
		if c.hasLex {
			lexNorm = normalizeLex(c.lexRaw)
		}
		if c.hasSem {
			semNorm = normalizeSem(c.semRaw)
		}

		hits = append(hits, Hit{
			Agent:         agent,
			Score:         lexW*lexNorm + semW*semNorm,
			LexicalScore:  lexNorm,
			SemanticScore: semNorm,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Agent.UpdatedAt.Equal(hits[j].Agent.UpdatedAt) {
			return hits[i].Agent.UpdatedAt.After(hits[j].Agent.UpdatedAt)
		}
		return hits[i].Agent.ID < hits[j].Agent.ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	result.Hits = hits

	s.cachePut(cacheKey, result)
	return result, nil
}

// searchCacheKey builds the cache key for one query. The query is
// length-prefixed so query text containing the field delimiters cannot
// collide with a different parameter combination.
func searchCacheKey(query string, topK int, lexW, semW float64) string {
	return fmt.Sprintf("%d:%s|%d|%g|%g", len(query), query, topK, lexW, semW)
}

// cachePut stores a result page unless ranking was degraded. Caching a
// degraded page would keep reporting it for the full TTL after the
// embedding provider recovers.
func (s *Service) cachePut(key string, result *SearchResult) {
	if s.cache == nil || result.Degraded {
		return
	}
	s.cache.Put(key, result)
}

// normalizer builds a min-max scaler over the scores observed in this query's
// candidate set, making the lexical and semantic ranges comparable. When all
// observed scores are equal, every present score maps to 1.
func normalizer(candidates map[string]*candidate, get func(*candidate) (float64, bool)) func(float64) float64 {
	first := true
	var min, max float64
	for _, c := range candidates {
		v, ok := get(c)
		if !ok {
			continue
		}
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	span := max - min
	return func(v float64) float64 {
		if first {
			return 0 // no observations
		}
		if span == 0 {
			return 1
		}
		return (v - min) / span
	}
}
