package tananfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tananfs/tananfs/testhelper"
)

func TestNewEmptyBlockHasNullNextPointer(t *testing.T) {
	b := NewEmptyBlock(3, 64)
	require.Equal(t, NullBlock, b.NextPointer())
	require.Len(t, b.Data, 64)
}

func TestBlockSetNextPointerAndPayload(t *testing.T) {
	b := NewEmptyBlock(0, 32)
	b.SetNextPointer(7)
	require.Equal(t, uint64(7), b.NextPointer())

	payload := b.Payload()
	require.Len(t, payload, 32-int(BlockPointerSize))
	payload[0] = 0xAB
	require.Equal(t, byte(0xAB), b.Data[BlockPointerSize])
}

func TestBlockCloneIsIndependent(t *testing.T) {
	b := NewEmptyBlock(1, 16)
	b.SetNextPointer(5)
	clone := b.Clone()
	clone.SetNextPointer(9)

	require.Equal(t, uint64(5), b.NextPointer())
	require.Equal(t, uint64(9), clone.NextPointer())
	require.True(t, b.Equal(b.Clone()))
	require.False(t, b.Equal(clone))
}

func TestBlockEqualDiffersByIndexOrData(t *testing.T) {
	a := NewEmptyBlock(1, 16)
	b := NewEmptyBlock(2, 16)
	require.False(t, a.Equal(b))

	c := NewEmptyBlock(1, 16)
	require.True(t, a.Equal(c))
}

func TestBlockFlushThenLoadRoundTrip(t *testing.T) {
	dev := testhelper.NewMemStorage(0)
	sb := NewSuperblock(2*1024*1024, 512)
	require.NoError(t, sb.Flush(dev))

	b := NewEmptyBlock(0, sb.BlockSize)
	b.SetNextPointer(NullBlock)
	copy(b.Payload(), []byte("payload bytes"))
	require.NoError(t, b.Flush(dev, sb))

	loaded, err := LoadBlock(dev, sb, 0)
	require.NoError(t, err)
	require.True(t, b.Equal(loaded))
}

func TestLoadBlockOutOfBounds(t *testing.T) {
	dev := testhelper.NewMemStorage(0)
	sb := NewSuperblock(2*1024*1024, 512)
	_, err := LoadBlock(dev, sb, sb.BlockCount)
	require.ErrorIs(t, err, ErrOutOfBounds)
}
