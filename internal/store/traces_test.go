// ABOUTME: Tests for trace persistence and parent integrity
// ABOUTME: Covers missing parents, duplicate ids, and child listing order

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateTrace_Root(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	trace := &Trace{ID: "trace-1", Payload: `{"run":"one"}`}
	require.NoError(t, store.CreateTrace(ctx, trace))

	retrieved, err := store.GetTrace(ctx, "trace-1")
	require.NoError(t, err)
	assert.Empty(t, retrieved.ParentTraceID)
	assert.Equal(t, `{"run":"one"}`, retrieved.Payload)
}

func TestStore_CreateTrace_WithParent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTrace(ctx, &Trace{ID: "root"}))
	require.NoError(t, store.CreateTrace(ctx, &Trace{ID: "child", ParentTraceID: "root"}))

	child, err := store.GetTrace(ctx, "child")
	require.NoError(t, err)
	assert.Equal(t, "root", child.ParentTraceID)
}

func TestStore_CreateTrace_ParentNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.CreateTrace(ctx, &Trace{ID: "orphan", ParentTraceID: "missing"})
	require.ErrorIs(t, err, ErrParentNotFound)

	// Nothing was written.
	_, err = store.GetTrace(ctx, "orphan")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateTrace_SelfParent(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateTrace(context.Background(), &Trace{ID: "t1", ParentTraceID: "t1"})
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestStore_ListChildren(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTrace(ctx, &Trace{ID: "root"}))
	require.NoError(t, store.CreateTrace(ctx, &Trace{ID: "c1", ParentTraceID: "root"}))
	require.NoError(t, store.CreateTrace(ctx, &Trace{ID: "c2", ParentTraceID: "root"}))
	require.NoError(t, store.CreateTrace(ctx, &Trace{ID: "grandchild", ParentTraceID: "c1"}))

	children, err := store.ListChildren(ctx, "root")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "c1", children[0].ID)
	assert.Equal(t, "c2", children[1].ID)

	none, err := store.ListChildren(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, none)
}
