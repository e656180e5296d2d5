// Package directory is the service layer over agent records: it owns the
// upsert/delete policy, hybrid search ranking, and search result caching.
//
// # Upsert policy
//
// Upserts with unchanged name and frontmatter are no-ops: the stored lexical
// vector is untouched and the embedding provider is not called. When text
// changes, the lexical vector is always refreshed (inside the store's write
// transaction), and the embedding is refreshed through the provider under a
// bounded timeout. A provider failure degrades the write instead of failing
// it: the row keeps its previous vector, is flagged stale, and the embedding
// retrier recovers it out of band.
//
// # Hybrid ranking
//
// Search combines an FTS5 bm25 lexical score with a cosine similarity score
// over stored embeddings. The two raw ranges are incomparable, so each is
// min-max normalized over the query's candidate set before the weighted sum.
// Ties break on most recent update then id, keeping ordering deterministic.
// When the query embedding cannot be computed, ranking is lexical-only and
// the result carries Degraded=true.
//
// Ranked results are cached with a TTL; every agent write flushes the cache.
package directory
