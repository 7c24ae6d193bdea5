package tananfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tananfs/tananfs/testhelper"
)

func TestFilesystemAcquireAndReleaseInode(t *testing.T) {
	fsys := newTestFilesystem(t, 512)

	first, err := fsys.AcquireInode()
	require.NoError(t, err)

	second, err := fsys.AcquireInode()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, fsys.ReleaseInode(first))
	require.ErrorIs(t, fsys.ReleaseInode(first), ErrDoubleRelease)

	third, err := fsys.AcquireInode()
	require.NoError(t, err)
	require.Equal(t, first, third, "released inode should be reused before allocating a new one")
}

func TestFilesystemAcquireAndReleaseBlock(t *testing.T) {
	fsys := newTestFilesystem(t, 512)

	idx, err := fsys.AcquireBlock()
	require.NoError(t, err)

	block, err := fsys.LoadBlock(idx, true)
	require.NoError(t, err)
	require.Equal(t, NullBlock, block.NextPointer())

	require.NoError(t, fsys.ReleaseBlock(idx))
	require.ErrorIs(t, fsys.ReleaseBlock(idx), ErrDoubleRelease)
}

func TestFilesystemLoadUnallocatedInodeFails(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	_, err := fsys.LoadInode(12345)
	require.Error(t, err)
}

func TestFilesystemFormatThenLoadRoundTrip(t *testing.T) {
	dev := testhelper.NewMemStorage(0)
	fsys, err := New(dev, 4*1024*1024, 512)
	require.NoError(t, err)
	require.NoError(t, fsys.EnsureRoot())
	require.NoError(t, fsys.ForceFlush())

	loaded, err := Load(dev, 512)
	require.NoError(t, err)

	root, err := loaded.LoadInode(RootInode)
	require.NoError(t, err)
	require.Equal(t, TypeDirectory, root.Type)
}
