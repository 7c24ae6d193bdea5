package tananfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tananfs/tananfs/testhelper"
)

func TestNewSuperblockGeometryIsConsistent(t *testing.T) {
	sb := NewSuperblock(4*1024*1024, 512)
	require.Equal(t, MagicSignature, sb.Magic)
	require.Greater(t, sb.InodeCount, uint64(0))
	require.Greater(t, sb.BlockCount, uint64(0))
	require.Equal(t, sb.InodeCount, sb.InodesFree)
	require.Equal(t, sb.BlockCount, sb.BlocksFree)

	first, err := sb.BlockPosition(0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, first, sb.BlockSize+SuperblockSize)

	_, err = sb.BlockPosition(sb.BlockCount)
	require.ErrorIs(t, err, ErrOutOfBounds)

	_, err = sb.InodePosition(sb.InodeCount)
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestNewSuperblockRejectsBadBlockSize(t *testing.T) {
	require.Panics(t, func() { NewSuperblock(1024*1024, 1000) })
	require.Panics(t, func() { NewSuperblock(1024*1024, 256) })
	require.Panics(t, func() { NewSuperblock(1024*1024, 16384) })
}

func TestSuperblockToBytesFromBytesRoundTrip(t *testing.T) {
	sb := NewSuperblock(2*1024*1024, 1024)
	buf := sb.ToBytes()
	require.Len(t, buf, int(SuperblockSize))

	decoded, err := SuperblockFromBytes(buf)
	require.NoError(t, err)
	require.Equal(t, sb.InodeCount, decoded.InodeCount)
	require.Equal(t, sb.BlockCount, decoded.BlockCount)
	require.Equal(t, sb.BlockSize, decoded.BlockSize)
	require.Equal(t, sb.Magic, decoded.Magic)
}

func TestLoadSuperblockRejectsBadMagic(t *testing.T) {
	dev := testhelper.NewMemStorage(8192)
	_, err := LoadSuperblock(dev, 512)
	require.ErrorIs(t, err, ErrIo)
}

func TestSuperblockFlushThenLoadRoundTrip(t *testing.T) {
	dev := testhelper.NewMemStorage(0)
	sb := NewSuperblock(2*1024*1024, 512)
	require.NoError(t, sb.Flush(dev))

	loaded, err := LoadSuperblock(dev, 512)
	require.NoError(t, err)
	require.Equal(t, sb.InodeCount, loaded.InodeCount)
	require.Equal(t, sb.BlockCount, loaded.BlockCount)
}

func TestDetectBlockSizeFindsMatchingCandidate(t *testing.T) {
	dev := testhelper.NewMemStorage(0)
	sb := NewSuperblock(2*1024*1024, 2048)
	require.NoError(t, sb.Flush(dev))

	detected, ok, err := DetectBlockSize(dev)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2048), detected)
}

func TestDetectBlockSizeNoMatch(t *testing.T) {
	dev := testhelper.NewMemStorage(16384)
	_, ok, err := DetectBlockSize(dev)
	require.NoError(t, err)
	require.False(t, ok)
}
