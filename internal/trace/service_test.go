// ABOUTME: Tests for trace forest creation and lazy lineage walks
// ABOUTME: Covers parent validation, children ordering, ancestor and subtree iteration

package trace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-directory/internal/store"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st)
}

// buildChain creates root <- a <- b <- c and returns the ids in that order.
func buildChain(t *testing.T, svc *Service) []string {
	t.Helper()
	ctx := context.Background()
	ids := []string{"root", "a", "b", "c"}
	parent := ""
	for _, id := range ids {
		_, err := svc.Create(ctx, id, parent, "payload "+id)
		require.NoError(t, err)
		parent = id
	}
	return ids
}

func TestCreate_AssignsID(t *testing.T) {
	svc := setupService(t)

	trace, err := svc.Create(context.Background(), "", "", `{"event":"start"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, trace.ID)
	assert.False(t, trace.CreatedAt.IsZero())
}

func TestCreate_ParentMustExist(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Create(context.Background(), "child", "no-such-parent", "")
	assert.ErrorIs(t, err, store.ErrParentNotFound)
}

func TestCreate_SelfParentRejected(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Create(context.Background(), "loop", "loop", "")
	assert.ErrorIs(t, err, store.ErrCycleDetected)
}

func TestChildren(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "root", "", "")
	require.NoError(t, err)
	for _, id := range []string{"c1", "c2"} {
		_, err := svc.Create(ctx, id, "root", "")
		require.NoError(t, err)
	}

	children, err := svc.Children(ctx, "root")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "c1", children[0].ID)
	assert.Equal(t, "c2", children[1].ID)

	leaf, err := svc.Children(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, leaf)

	_, err = svc.Children(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAncestors_WalksToRoot(t *testing.T) {
	svc := setupService(t)
	buildChain(t, svc)

	var got []string
	for ancestor, err := range svc.Ancestors(context.Background(), "c") {
		require.NoError(t, err)
		got = append(got, ancestor.ID)
	}
	assert.Equal(t, []string{"b", "a", "root"}, got)
}

func TestAncestors_RootHasNone(t *testing.T) {
	svc := setupService(t)
	buildChain(t, svc)

	count := 0
	for _, err := range svc.Ancestors(context.Background(), "root") {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 0, count)
}

func TestAncestors_MissingTrace(t *testing.T) {
	svc := setupService(t)

	var errs []error
	for _, err := range svc.Ancestors(context.Background(), "missing") {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], store.ErrNotFound)
}

func TestAncestors_EarlyStopReadsOneLevel(t *testing.T) {
	svc := setupService(t)
	buildChain(t, svc)

	var got []string
	for ancestor, err := range svc.Ancestors(context.Background(), "c") {
		require.NoError(t, err)
		got = append(got, ancestor.ID)
		break
	}
	assert.Equal(t, []string{"b"}, got)
}

func TestSubtree_PreorderCreationOrder(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	//       root
	//      /    \
	//    c1      c2
	//   /  \
	// g1    g2
	for _, pair := range [][2]string{
		{"root", ""}, {"c1", "root"}, {"c2", "root"}, {"g1", "c1"}, {"g2", "c1"},
	} {
		_, err := svc.Create(ctx, pair[0], pair[1], "")
		require.NoError(t, err)
	}

	var got []string
	for trace, err := range svc.Subtree(ctx, "root") {
		require.NoError(t, err)
		got = append(got, trace.ID)
	}
	assert.Equal(t, []string{"c1", "g1", "g2", "c2"}, got)
}
