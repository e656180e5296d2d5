// ABOUTME: Embedding provider interface and error taxonomy
// ABOUTME: Providers turn text into fixed-dimension float32 vectors

package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding provider cannot be reached or
// rejects the request. Callers degrade and continue rather than failing the
// write that triggered the embedding.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider computes a fixed-dimension embedding for a piece of text.
type Provider interface {
	// Embed returns the embedding vector for text. Implementations must
	// honor ctx cancellation and bound their own request time.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions reports the vector length this provider produces.
	Dimensions() int
}
