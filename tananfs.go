// Package tananfs is the top-level convenience API for formatting and
// opening a tananfs image on a path to a block device or a regular file,
// mirroring the open/create helpers a disk-image library offers around its
// lower-level filesystem packages.
//
// It does not implement the on-disk format itself — that lives in
// filesystem/tananfs — nor the FUSE bridge or CLI, which are separate
// packages built on top of the core.
package tananfs

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/tananfs/tananfs/backend"
	"github.com/tananfs/tananfs/backend/file"
	core "github.com/tananfs/tananfs/filesystem/tananfs"
)

const defaultBlockSize = 4096

// Format lays down a fresh tananfs image at path, sized to capacityBytes.
// If blockSize is 0, defaultBlockSize is used. If path already exists (a
// block device node always does), it is opened and formatted in place
// rather than created, since device nodes can't be O_CREATE|O_EXCL'd or
// truncated to a new size; a plain path that does not yet exist is created
// at exactly capacityBytes. It stamps a random, best-effort volume
// identifier into the otherwise-unused boot sector (bytes [0, blockSize));
// the identifier is never parsed back and has no bearing on the wire
// format core.Superblock defines.
func Format(path string, capacityBytes uint64, blockSize uint64) (*core.Filesystem, error) {
	if blockSize == 0 {
		blockSize = defaultBlockSize
	}
	dev, err := openOrCreate(path, capacityBytes)
	if err != nil {
		return nil, err
	}
	fsys, err := core.New(dev, capacityBytes, blockSize)
	if err != nil {
		return nil, err
	}
	if err := stampVolumeID(dev, blockSize); err != nil {
		return nil, err
	}
	if err := fsys.EnsureRoot(); err != nil {
		return nil, err
	}
	return fsys, nil
}

// Open loads an existing tananfs image at path. If blockSize is 0,
// DetectBlockSize is used to read it back from the image's magic
// signature.
func Open(path string, blockSize uint64) (*core.Filesystem, error) {
	dev, err := file.OpenFromPath(path, false)
	if err != nil {
		return nil, fmt.Errorf("tananfs: opening %s: %w", path, err)
	}
	if blockSize == 0 {
		detected, ok, err := core.DetectBlockSize(dev)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("tananfs: %s does not carry a tananfs signature", path)
		}
		blockSize = detected
	}
	return core.Load(dev, blockSize)
}

// DetectExisting reports the block size of an already-formatted image at
// path, if any.
func DetectExisting(path string) (uint64, bool, error) {
	dev, err := file.OpenFromPath(path, true)
	if err != nil {
		return 0, false, fmt.Errorf("tananfs: opening %s: %w", path, err)
	}
	defer dev.Close()
	return core.DetectBlockSize(dev)
}

func openOrCreate(path string, capacityBytes uint64) (backend.Storage, error) {
	if _, err := os.Stat(path); err == nil {
		dev, err := file.OpenFromPath(path, false)
		if err != nil {
			return nil, fmt.Errorf("tananfs: opening %s: %w", path, err)
		}
		return dev, nil
	}
	dev, err := file.CreateFromPath(path, int64(capacityBytes))
	if err != nil {
		return nil, fmt.Errorf("tananfs: creating %s: %w", path, err)
	}
	return dev, nil
}

func stampVolumeID(dev backend.Storage, blockSize uint64) error {
	writable, err := dev.Writable()
	if err != nil {
		return fmt.Errorf("tananfs: stamping volume id: %w", err)
	}
	id := uuid.New()
	idBytes, err := id.MarshalBinary()
	if err != nil {
		return fmt.Errorf("tananfs: stamping volume id: %w", err)
	}
	if uint64(len(idBytes)) > blockSize {
		return nil
	}
	if _, err := writable.WriteAt(idBytes, 0); err != nil {
		return fmt.Errorf("tananfs: stamping volume id: %w", err)
	}
	return nil
}
