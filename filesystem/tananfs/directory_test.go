package tananfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newRootDir(t *testing.T, fsys *Filesystem) *Directory {
	t.Helper()
	require.NoError(t, fsys.EnsureRoot())
	root, err := LoadDirectory(fsys, RootInode)
	require.NoError(t, err)
	return root
}

func TestDirectoryAddAndLookupChild(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	root := newRootDir(t, fsys)
	defer root.Close()

	child, err := NewDirectory(fsys, RootInode, "sub", 0o755)
	require.NoError(t, err)
	defer child.Close()

	reloadedRoot, err := LoadDirectory(fsys, RootInode)
	require.NoError(t, err)
	defer reloadedRoot.Close()

	entry, ok := reloadedRoot.Lookup("sub")
	require.True(t, ok)
	require.Equal(t, child.Inode().Index, entry.Inode)
}

func TestDirectoryAddChildDuplicateRejected(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	root := newRootDir(t, fsys)
	defer root.Close()

	require.NoError(t, root.AddChild("foo", 42))
	require.ErrorIs(t, root.AddChild("foo", 42), ErrNameOrInodeDuplicate)
}

func TestDirectoryRemoveEmptyFailsWhenNotEmpty(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	root := newRootDir(t, fsys)
	defer root.Close()

	child, err := NewDirectory(fsys, RootInode, "sub", 0o755)
	require.NoError(t, err)
	require.NoError(t, child.Flush())

	grandchild, err := NewDirectory(fsys, child.Inode().Index, "nested", 0o755)
	require.NoError(t, err)

	reloadedChild, err := LoadDirectory(fsys, child.Inode().Index)
	require.NoError(t, err)
	require.ErrorIs(t, reloadedChild.RemoveEmpty(), ErrDirectoryNotEmpty)

	require.NoError(t, grandchild.Flush())
	require.NoError(t, reloadedChild.RemoveChild("nested"))
	require.NoError(t, reloadedChild.Flush())

	reloadedChild2, err := LoadDirectory(fsys, child.Inode().Index)
	require.NoError(t, err)
	require.NoError(t, reloadedChild2.RemoveEmpty())
}

func TestDirectoryTransferChildSameParentRenames(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	root := newRootDir(t, fsys)
	defer root.Close()

	require.NoError(t, root.AddChild("old", 7))
	require.NoError(t, root.TransferChild("old", root, "new"))
	_, ok := root.Lookup("old")
	require.False(t, ok)
	entry, ok := root.Lookup("new")
	require.True(t, ok)
	require.Equal(t, uint64(7), entry.Inode)
}

func TestDirectoryTransferChildCrossParentMoves(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	root := newRootDir(t, fsys)
	defer root.Close()

	other, err := NewDirectory(fsys, RootInode, "other", 0o755)
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, root.AddChild("moveme", 99))
	require.NoError(t, root.TransferChild("moveme", other, "moveme"))

	_, ok := root.Lookup("moveme")
	require.False(t, ok)
	entry, ok := other.Lookup("moveme")
	require.True(t, ok)
	require.Equal(t, uint64(99), entry.Inode)
}

func TestDirectoryFlushAndReloadPersistsChildren(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	root := newRootDir(t, fsys)
	defer root.Close()

	for _, name := range []string{"a", "b", "c"} {
		_, err := NewRegularFile(fsys, root, name, 0o644)
		require.NoError(t, err)
	}

	reloaded, err := LoadDirectory(fsys, RootInode)
	require.NoError(t, err)
	defer reloaded.Close()

	require.Len(t, reloaded.Children(), 3)
	for _, name := range []string{"a", "b", "c"} {
		_, ok := reloaded.Lookup(name)
		require.True(t, ok, "expected child %q", name)
	}
}

func TestDirectoryRemoveChildShrinksFlushedSize(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	root := newRootDir(t, fsys)
	defer root.Close()

	for _, name := range []string{"a", "bb", "ccc"} {
		_, err := NewRegularFile(fsys, root, name, 0o644)
		require.NoError(t, err)
	}
	sizeBefore := root.Inode().Size

	require.NoError(t, root.RemoveChild("ccc"))
	require.NoError(t, root.Flush())

	sizeAfter := root.Inode().Size
	require.Less(t, sizeAfter, sizeBefore, "inode size should shrink after removing a child and re-flushing")

	reloaded, err := LoadDirectory(fsys, RootInode)
	require.NoError(t, err)
	defer reloaded.Close()
	require.Equal(t, sizeAfter, reloaded.Inode().Size)
	require.Len(t, reloaded.Children(), 2)
}
