// Package embedding turns agent text into fixed-dimension vectors via an
// external OpenAI-compatible provider and keeps stored vectors fresh.
//
// The provider is an external collaborator: when it is down, callers degrade
// (the write proceeds, the row is flagged stale) rather than fail. Provider
// failures all map to ErrUnavailable so the degradation path is uniform.
//
// Vectors are packed little-endian float32 blobs (Encode/Decode) so SQLite
// can store them directly; Cosine compares them for similarity ranking.
//
// Retrier is the out-of-band recovery loop: it sweeps rows flagged stale or
// missing and re-embeds them, using an updated_at guard so a concurrent text
// change is never overwritten with a vector computed from older text.
package embedding
