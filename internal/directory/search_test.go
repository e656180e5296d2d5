// ABOUTME: Tests for hybrid search ranking
// ABOUTME: Covers weight shifts, per-leg normalization, degraded mode, and tie-breaks

package directory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// directionalEmbedder places billing-flavored text on one axis and
// search-flavored text on the other, so cosine similarity is predictable.
func directionalEmbedder() *fakeEmbedder {
	return &fakeEmbedder{fn: func(text string) []float32 {
		if strings.Contains(strings.ToLower(text), "web") {
			return []float32{0, 1}
		}
		return []float32{1, 0}
	}}
}

func TestSearch_WeightsShiftRanking(t *testing.T) {
	svc, _ := setupService(t, directionalEmbedder(), Options{})
	ctx := context.Background()

	// billing: strong lexical match for the query, orthogonal embedding.
	// websearch: no lexical overlap, embedding aligned with the query.
	_, _, err := svc.UpsertAgent(ctx, "billing", "Billing Helper", "handles refund and invoice questions")
	require.NoError(t, err)
	_, _, err = svc.UpsertAgent(ctx, "websearch", "Web Helper", "runs web lookups")
	require.NoError(t, err)

	// Query embeds to [1,0] (no "web"), matching billing semantically too, so
	// flip it: query text that embeds toward websearch but tokenizes toward
	// billing.
	lexical, err := svc.Search(ctx, "refund invoice", 10, SearchOptions{LexicalWeight: 1, SemanticWeight: 0.0001})
	require.NoError(t, err)
	require.Len(t, lexical.Hits, 2)
	assert.Equal(t, "billing", lexical.Hits[0].Agent.ID)

	semantic, err := svc.Search(ctx, "web refund invoice", 10, SearchOptions{LexicalWeight: 0.0001, SemanticWeight: 1})
	require.NoError(t, err)
	require.NotEmpty(t, semantic.Hits)
	assert.Equal(t, "websearch", semantic.Hits[0].Agent.ID)
}

func TestSearch_ScoresNormalizedPerLeg(t *testing.T) {
	svc, _ := setupService(t, directionalEmbedder(), Options{})
	ctx := context.Background()

	_, _, err := svc.UpsertAgent(ctx, "billing", "Billing Helper", "handles refund and invoice questions")
	require.NoError(t, err)
	_, _, err = svc.UpsertAgent(ctx, "websearch", "Web Helper", "runs web lookups")
	require.NoError(t, err)

	result, err := svc.Search(ctx, "refund invoice", 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)

	for _, hit := range result.Hits {
		assert.GreaterOrEqual(t, hit.LexicalScore, 0.0)
		assert.LessOrEqual(t, hit.LexicalScore, 1.0)
		assert.GreaterOrEqual(t, hit.SemanticScore, 0.0)
		assert.LessOrEqual(t, hit.SemanticScore, 1.0)
		assert.LessOrEqual(t, hit.Score, 1.0)
	}

	// billing is the only lexical candidate, so its normalized lexical score
	// pins to 1; websearch never matched lexically and sits at 0.
	byID := map[string]Hit{}
	for _, h := range result.Hits {
		byID[h.Agent.ID] = h
	}
	assert.Equal(t, 1.0, byID["billing"].LexicalScore)
	assert.Equal(t, 0.0, byID["websearch"].LexicalScore)
}

func TestSearch_DegradedLexicalOnly(t *testing.T) {
	embedder := directionalEmbedder()
	svc, _ := setupService(t, embedder, Options{})
	ctx := context.Background()

	_, _, err := svc.UpsertAgent(ctx, "billing", "Billing Helper", "handles refund and invoice questions")
	require.NoError(t, err)
	_, _, err = svc.UpsertAgent(ctx, "websearch", "Web Helper", "runs web lookups")
	require.NoError(t, err)

	embedder.fail.Store(true)
	result, err := svc.Search(ctx, "refund", 10, SearchOptions{})
	require.NoError(t, err, "query embedding failure must not fail the search")
	assert.True(t, result.Degraded)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "billing", result.Hits[0].Agent.ID)
	assert.Equal(t, 0.0, result.Hits[0].SemanticScore)
}

func TestSearch_TieBreaksOnRecency(t *testing.T) {
	// Every agent embeds identically and nothing matches lexically, so all
	// scores are equal and ordering falls to updated_at desc.
	svc, _ := setupService(t, &fakeEmbedder{}, Options{})
	ctx := context.Background()

	_, _, err := svc.UpsertAgent(ctx, "older", "Alpha", "first agent")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, _, err = svc.UpsertAgent(ctx, "newer", "Beta", "second agent")
	require.NoError(t, err)

	result, err := svc.Search(ctx, "zzz unmatched", 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, result.Hits[0].Score, result.Hits[1].Score)
	assert.Equal(t, "newer", result.Hits[0].Agent.ID)
	assert.Equal(t, "older", result.Hits[1].Agent.ID)
}

func TestSearch_TopKTruncates(t *testing.T) {
	svc, _ := setupService(t, &fakeEmbedder{}, Options{})
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, _, err := svc.UpsertAgent(ctx, id, "Helper "+id, "handles refunds")
		require.NoError(t, err)
	}

	result, err := svc.Search(ctx, "refunds", 2, SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Hits, 2)
}

func TestSearch_EmptyDirectory(t *testing.T) {
	svc, _ := setupService(t, &fakeEmbedder{}, Options{})

	result, err := svc.Search(context.Background(), "anything", 10, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.False(t, result.Degraded)
}

func TestSearch_StaleEmbeddingStillRanks(t *testing.T) {
	// A degraded upsert keeps the previous vector, so semantic ranking keeps
	// working from the last good embedding.
	embedder := directionalEmbedder()
	svc, _ := setupService(t, embedder, Options{})
	ctx := context.Background()

	_, _, err := svc.UpsertAgent(ctx, "websearch", "Web Helper", "runs web lookups")
	require.NoError(t, err)

	embedder.fail.Store(true)
	_, degraded, err := svc.UpsertAgent(ctx, "websearch", "Web Helper", "runs web and image lookups")
	require.NoError(t, err)
	require.True(t, degraded)
	embedder.fail.Store(false)

	result, err := svc.Search(ctx, "web things", 10, SearchOptions{LexicalWeight: 0.0001, SemanticWeight: 1})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "websearch", result.Hits[0].Agent.ID)
	assert.Greater(t, result.Hits[0].SemanticScore, 0.0)
}

func TestSearchCacheKey_DelimiterQueriesDistinct(t *testing.T) {
	// Query text containing the key's field delimiters must not alias a
	// different parameter combination. The query is length-prefixed, so each
	// of these lands on its own cache entry.
	inputs := []struct {
		query      string
		topK       int
		lexW, semW float64
	}{
		{"refund", 10, 0.5, 0.5},
		{"refund|10|0.5|0.5", 10, 0.5, 0.5},
		{"refund|10", 10, 0.5, 0.5},
		{"refund|100", 10, 0.5, 0.5},
		{"refund|10|0.5", 10, 0.5, 0.5},
		{"refund", 100, 0.5, 0.5},
		{"refund", 10, 0.25, 0.75},
	}

	seen := make(map[string]int)
	for i, in := range inputs {
		key := searchCacheKey(in.query, in.topK, in.lexW, in.semW)
		if prev, ok := seen[key]; ok {
			t.Fatalf("inputs %d and %d collide on key %q", prev, i, key)
		}
		seen[key] = i
	}
}

func TestSearch_DegradedResultNotCached(t *testing.T) {
	embedder := directionalEmbedder()
	svc, _ := setupService(t, embedder, Options{CacheTTL: time.Minute, CacheSize: 16})
	ctx := context.Background()

	_, _, err := svc.UpsertAgent(ctx, "websearch", "Web Helper", "runs web lookups")
	require.NoError(t, err)

	embedder.fail.Store(true)
	result, err := svc.Search(ctx, "web", 10, SearchOptions{})
	require.NoError(t, err)
	require.True(t, result.Degraded)

	// The provider is back. A degraded page must not be served from cache
	// for the rest of the TTL.
	embedder.fail.Store(false)
	result, err = svc.Search(ctx, "web", 10, SearchOptions{})
	require.NoError(t, err)
	assert.False(t, result.Degraded, "recovered search must not replay the degraded page")
	require.Len(t, result.Hits, 1)
	assert.Equal(t, 1.0, result.Hits[0].SemanticScore)
}
