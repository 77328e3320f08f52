package tree

import (
	"testing"

	"quicklaunch/internal/item"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildNested returns root [A, F1[B, F2[C]]].
func buildNested(t *testing.T) (*Store, string, string) {
	t.Helper()
	s := NewStoreWithApps([]item.Application{app("A")})
	f2 := s.newFolder("Inner", []item.Item{item.FromApplication(app("C"))})
	f1 := s.newFolder("Outer", []item.Item{item.FromApplication(app("B")), f2})
	s.appendTo(RootID, f1)
	return s, f1.ID(), f2.ID()
}

func TestStoreTraversal(t *testing.T) {
	s, f1, f2 := buildNested(t)

	assert.ElementsMatch(t, []string{"A", "B", "C"}, names(s.FlattenApplications()))

	folders := s.AllFolders()
	require.Len(t, folders, 2)
	assert.Equal(t, f1, folders[0].ID)
	assert.Equal(t, f2, folders[1].ID)
	assert.Equal(t, "Outer", folders[0].Name)

	it, ok := s.FindItemByID(app("C").ID())
	require.True(t, ok)
	assert.Equal(t, "C", it.Name())

	it, ok = s.FindItemByID(f2)
	require.True(t, ok)
	assert.True(t, it.IsFolder())
	assert.Equal(t, "Inner", it.Name())

	_, ok = s.FindItemByID("missing")
	assert.False(t, ok)
}

func TestStoreFindFolderContext(t *testing.T) {
	s, f1, f2 := buildNested(t)

	ctx, ok := s.FindFolderContext(f1)
	require.True(t, ok)
	assert.False(t, ctx.HasParent())
	assert.Equal(t, f1, ctx.Target.ID)

	ctx, ok = s.FindFolderContext(f2)
	require.True(t, ok)
	assert.Equal(t, f1, ctx.ParentID)
	assert.Len(t, ctx.Target.Items, 1)

	_, ok = s.FindFolderContext(app("A").ID())
	assert.False(t, ok)
}

func TestStoreReplaceDropsFoldersAndDuplicates(t *testing.T) {
	s, f1, _ := buildNested(t)

	s.Replace([]item.Application{app("X"), app("X"), app("Y")})

	assert.Len(t, s.Root(), 2)
	_, ok := s.Folder(f1)
	assert.False(t, ok)
	assert.Empty(t, s.AllFolders())
}

func TestStoreRename(t *testing.T) {
	s, f1, _ := buildNested(t)
	require.NoError(t, s.Rename(f1, "Games"))
	assert.ErrorIs(t, s.Rename("missing", "x"), ErrNotFound)

	items, ok := s.Items(RootID)
	require.True(t, ok)
	assert.Equal(t, "Games", items[1].Name())
}

func TestSnapshotDiff(t *testing.T) {
	s, f1, f2 := buildNested(t)
	before := s.Snapshot()
	assert.Equal(t, RootID, before.Container[f1])
	assert.Equal(t, f1, before.Container[f2])
	assert.Equal(t, f2, before.Container[app("C").ID()])

	s.removeID(app("C").ID())
	s.appendTo(RootID, item.FromApplication(app("C")))
	s.cleanup()
	require.NoError(t, s.Rename(f1, "Renamed"))

	c := Diff(before, s.Snapshot())
	assert.Equal(t, []string{app("C").ID()}, c.Moved)
	assert.Equal(t, []string{f2}, c.Removed)
	assert.Empty(t, c.Added)
	assert.Equal(t, []string{f1}, c.Renamed)
	assert.False(t, c.Empty())
}
