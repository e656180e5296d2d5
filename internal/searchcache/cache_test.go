// ABOUTME: Tests for the TTL and LRU behavior of the search result cache
// ABOUTME: Covers expiry, eviction order, and flush

package searchcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPut(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	_, ok := c.Get("q1")
	assert.False(t, ok)

	c.Put("q1", []string{"a", "b"})

	got, ok := c.Get("q1")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestCache_Expiry(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	c.Put("q1", "v")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("q1")
	assert.False(t, ok)
}

func TestCache_Flush(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	c.Put("q1", "v1")
	c.Put("q2", "v2")
	require.Equal(t, 2, c.Len())

	c.Flush()
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("q1")
	assert.False(t, ok)
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 3)
	defer c.Close()

	for i := range 4 {
		c.Put(fmt.Sprintf("q%d", i), i)
	}

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("q0")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = c.Get("q3")
	assert.True(t, ok)
}

func TestCache_PutRefreshesExisting(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Put("q1", "old")
	c.Put("q2", "v2")
	c.Put("q1", "new") // moves q1 to back
	c.Put("q3", "v3")  // evicts q2, not q1

	got, ok := c.Get("q1")
	require.True(t, ok)
	assert.Equal(t, "new", got)

	_, ok = c.Get("q2")
	assert.False(t, ok)
}

func TestCache_CloseTwice(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
