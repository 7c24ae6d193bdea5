// Package fuse bridges the tananfs core to the kernel VFS via go-fuse's
// nodefs API (github.com/hanwen/go-fuse/v2/fs). It translates the core's
// inode-indexed operations into FUSE node callbacks and maps the core's
// closed error set onto errno (spec §6, §7).
package fuse

import (
	"errors"
	"syscall"

	"github.com/tananfs/tananfs/filesystem/tananfs"
)

// errnoFor maps a core error to the errno the bridge reports to the
// kernel (spec §6's error code table). Errors outside the closed set
// (shouldn't occur in practice) fall back to EIO.
func errnoFor(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, tananfs.ErrDoubleAcquire):
		return syscall.EIO
	case errors.Is(err, tananfs.ErrDoubleRelease):
		return syscall.EBADF
	case errors.Is(err, tananfs.ErrOutOfBounds):
		return syscall.ESPIPE
	case errors.Is(err, tananfs.ErrOutOfMemory):
		return syscall.ENOSPC
	case errors.Is(err, tananfs.ErrInsufficientBytes):
		return syscall.ENOBUFS
	case errors.Is(err, tananfs.ErrThreadSync):
		return syscall.EDEADLK // EDEADLOCK is the glibc alias for EDEADLK
	case errors.Is(err, tananfs.ErrNameOrInodeDuplicate):
		return syscall.EEXIST
	case errors.Is(err, tananfs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, tananfs.ErrNullBlock):
		return syscall.ESPIPE
	case errors.Is(err, tananfs.ErrDirectoryNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, tananfs.ErrIo):
		return syscall.EIO
	case errors.Is(err, tananfs.ErrUtf8):
		return syscall.EBADMSG
	case errors.Is(err, tananfs.ErrSliceIndexing):
		return syscall.ENOBUFS
	case errors.Is(err, tananfs.ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, tananfs.ErrNotARegularFile):
		return syscall.EISDIR
	default:
		return syscall.EIO
	}
}
