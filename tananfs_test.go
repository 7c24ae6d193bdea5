package tananfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	core "github.com/tananfs/tananfs/filesystem/tananfs"
)

func TestFormatThenOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	fsys, err := Format(path, 4*1024*1024, 512)
	require.NoError(t, err)
	require.NoError(t, fsys.Close())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	root, err := reopened.LoadInode(core.RootInode)
	require.NoError(t, err)
	require.Equal(t, core.TypeDirectory, root.Type)
}

func TestFormatOnExistingDeviceNodeOpensInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.bin")
	// Simulate a pre-existing block device node: the path already exists
	// before Format is ever called, so it must be opened and formatted in
	// place rather than created.
	require.NoError(t, os.WriteFile(path, make([]byte, 4*1024*1024), 0o600))

	fsys, err := Format(path, 4*1024*1024, 512)
	require.NoError(t, err)
	require.NoError(t, fsys.Close())

	reopened, err := Open(path, 512)
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.LoadInode(core.RootInode)
	require.NoError(t, err)
}

func TestFormatStampsVolumeID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	fsys, err := Format(path, 4*1024*1024, 512)
	require.NoError(t, err)
	require.NoError(t, fsys.Close())

	raw, err := os.Open(path)
	require.NoError(t, err)
	defer raw.Close()

	idBytes := make([]byte, 16)
	_, err = raw.ReadAt(idBytes, 0)
	require.NoError(t, err)

	id, err := uuid.FromBytes(idBytes)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id, "volume id should not be the zero UUID")
}

func TestDetectExistingReportsFormattedBlockSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	fsys, err := Format(path, 4*1024*1024, 1024)
	require.NoError(t, err)
	require.NoError(t, fsys.Close())

	blockSize, ok, err := DetectExisting(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1024), blockSize)
}

func TestDetectExistingOnUnformattedFileReportsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024*1024), 0o600))

	_, ok, err := DetectExisting(path)
	require.NoError(t, err)
	require.False(t, ok)
}
