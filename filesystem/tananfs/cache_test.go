package tananfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheSetGetInodeRoundTrip(t *testing.T) {
	c := NewCache()
	_, ok := c.GetInode(1)
	require.False(t, ok)

	in := &Inode{Index: 1, Mode: 0o644}
	c.SetInode(in)

	got, ok := c.GetInode(1)
	require.True(t, ok)
	require.True(t, got.Equal(in))

	// the cache hands out clones, not the original pointer
	got.Mode = 0o600
	got2, _ := c.GetInode(1)
	require.Equal(t, uint16(0o644), got2.Mode)
}

func TestCacheSetInodeMarksModifiedOnlyWhenValueChanges(t *testing.T) {
	c := NewCache()
	in := &Inode{Index: 1, Mode: 0o644}
	c.SetInode(in)
	require.True(t, c.AllClean(), "first insert should not be marked modified")

	c.SetInode(&Inode{Index: 1, Mode: 0o600})
	require.False(t, c.AllClean())
}

func TestCacheSetGetBlockRoundTrip(t *testing.T) {
	c := NewCache()
	b := NewEmptyBlock(2, 32)
	c.SetBlock(b)

	got, ok := c.GetBlock(2)
	require.True(t, ok)
	require.True(t, got.Equal(b))
}

func TestCacheFlushDirtyClearsModifiedFlags(t *testing.T) {
	c := NewCache()
	c.SetInode(&Inode{Index: 1, Mode: 0o644})
	c.SetInode(&Inode{Index: 1, Mode: 0o600}) // now modified
	c.SetBlock(NewEmptyBlock(0, 16))
	c.SetBlock(&Block{Index: 0, Data: make([]byte, 16)}) // differs (next pointer), now modified

	var flushedInodes, flushedBlocks int
	err := c.FlushDirty(
		func(in *Inode) error { flushedInodes++; return nil },
		func(b *Block) error { flushedBlocks++; return nil },
	)
	require.NoError(t, err)
	require.Equal(t, 1, flushedInodes)
	require.Equal(t, 1, flushedBlocks)
	require.True(t, c.AllClean())
}

func TestCacheFlushDirtyPropagatesError(t *testing.T) {
	c := NewCache()
	c.SetInode(&Inode{Index: 1, Mode: 0o644})
	c.SetInode(&Inode{Index: 1, Mode: 0o600})

	sentinel := ErrIo
	err := c.FlushDirty(
		func(in *Inode) error { return sentinel },
		func(b *Block) error { return nil },
	)
	require.ErrorIs(t, err, sentinel)
}

func TestCachePruneEvictsOldestUnmodifiedBeyondLimit(t *testing.T) {
	c := NewCache()
	for i := uint64(0); i < LRUMaxEntries+10; i++ {
		c.SetBlock(&Block{Index: i, Data: nil})
	}
	require.Len(t, c.blocks, LRUMaxEntries+10)

	c.Prune()
	require.LessOrEqual(t, len(c.blocks), LRUMaxEntries)
}

func TestCachePruneNeverEvictsModifiedLines(t *testing.T) {
	c := NewCache()
	c.SetInode(&Inode{Index: 1, Mode: 0o644})
	c.SetInode(&Inode{Index: 1, Mode: 0o600}) // dirty, must survive any prune

	for i := uint64(2); i < LRUMaxEntries+50; i++ {
		c.SetInode(&Inode{Index: i})
	}
	c.Prune()

	_, ok := c.GetInode(1)
	require.True(t, ok, "modified line must never be evicted")
}
