// ABOUTME: Tests for the OpenAI-compatible embedding client
// ABOUTME: Uses httptest servers to cover request shape, errors, and timeouts

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Embed(t *testing.T) {
	var gotAuth string
	var gotReq embeddingRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "test-model", 3, time.Second)

	vec, err := p.Embed(context.Background(), "refund agent")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotReq.Model)
	assert.Equal(t, "refund agent", gotReq.Input)
}

func TestOpenAIProvider_Embed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewOpenAIProvider("", server.URL, "", 0, time.Second)

	_, err := p.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIProvider_Embed_Unreachable(t *testing.T) {
	p := NewOpenAIProvider("", "http://127.0.0.1:1", "", 0, 100*time.Millisecond)

	_, err := p.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIProvider_Embed_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2}},
			},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("", server.URL, "", 4, time.Second)

	_, err := p.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAIProvider_Embed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{},
			"error": map[string]any{"message": "model overloaded"},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("", server.URL, "", 0, time.Second)

	_, err := p.Embed(context.Background(), "text")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "model overloaded")
}
