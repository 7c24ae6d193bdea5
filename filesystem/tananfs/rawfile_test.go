package tananfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tananfs/tananfs/testhelper"
)

func newTestFilesystem(t *testing.T, blockSize uint64) *Filesystem {
	t.Helper()
	dev := testhelper.NewMemStorage(0)
	fsys, err := New(dev, 4*1024*1024, blockSize)
	require.NoError(t, err)
	return fsys
}

func TestRawByteFileWriteAndReadWithinBlock(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	f := NewRawByteFile(fsys)

	data := []byte("hello, tananfs")
	require.NoError(t, f.Write(data))
	require.Equal(t, uint64(len(data)), f.Size())

	_, err := f.Seek(SeekStart, 0)
	require.NoError(t, err)
	buf := make([]byte, len(data))
	require.NoError(t, f.Read(buf))
	require.True(t, bytes.Equal(data, buf))
}

func TestRawByteFileWriteAcrossBlocks(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	f := NewRawByteFile(fsys)

	data := make([]byte, 1500) // spans > 2 data blocks of 504 bytes each
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, f.Write(data))
	require.Equal(t, uint64(len(data)), f.Size())
	require.True(t, f.BlockCount() >= 3)

	_, err := f.Seek(SeekStart, 0)
	require.NoError(t, err)
	got := make([]byte, len(data))
	require.NoError(t, f.Read(got))
	require.True(t, bytes.Equal(data, got))
}

func TestRawByteFileExtendAndShrink(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	f := NewRawByteFile(fsys)

	require.NoError(t, f.Extend(2000))
	require.Equal(t, uint64(2000), f.Size())

	_, err := f.Seek(SeekStart, 0)
	require.NoError(t, err)
	buf := make([]byte, 2000)
	require.NoError(t, f.Read(buf))
	for i, b := range buf {
		require.Equalf(t, byte(0), b, "byte %d not zero after Extend", i)
	}

	require.NoError(t, f.Shrink(100))
	require.Equal(t, uint64(100), f.Size())
	require.Equal(t, uint64(1), f.BlockCount())

	require.NoError(t, f.Shrink(0))
	require.Equal(t, uint64(0), f.Size())
	require.Equal(t, uint64(0), f.BlockCount())
	require.Equal(t, NullBlock, f.FirstBlock())
	require.Equal(t, NullBlock, f.LastBlock())
}

func TestRawByteFileShrinkOnNeverWrittenFile(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	f := NewRawByteFile(fsys)
	require.NoError(t, f.Shrink(0))
	require.Equal(t, uint64(0), f.Size())
}

func TestRawByteFileSeek(t *testing.T) {
	fsys := newTestFilesystem(t, 512)
	f, err := NewRawByteFileWithCapacity(fsys, 10000)
	require.NoError(t, err)

	pos, err := f.Seek(SeekStart, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), pos)

	pos, err = f.Seek(SeekCurrent, 111)
	require.NoError(t, err)
	require.Equal(t, uint64(1111), pos)

	pos, err = f.Seek(SeekCurrent, -50)
	require.NoError(t, err)
	require.Equal(t, uint64(1061), pos)

	pos, err = f.Seek(SeekEnd, -999)
	require.NoError(t, err)
	require.Equal(t, uint64(9001), pos)

	_, err = f.Seek(SeekStart, 11000)
	require.ErrorIs(t, err, ErrOutOfBounds)

	_, err = f.Seek(SeekCurrent, 1000)
	require.ErrorIs(t, err, ErrOutOfBounds)

	_, err = f.Seek(SeekEnd, 11000)
	require.ErrorIs(t, err, ErrOutOfBounds)

	pos, err = f.Seek(SeekEnd, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(10000), pos)
}
