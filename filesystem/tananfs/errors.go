package tananfs

import "errors"

// Sentinel errors returned by the core. They form a closed set: resource
// errors (OutOfMemory, OutOfBounds, NullBlock), misuse errors (DoubleAcquire,
// DoubleRelease, NameOrInodeDuplicate, DirectoryNotEmpty, InsufficientBytes),
// a lookup error (NotFound), a concurrency error (ThreadSync), and I/O
// errors (Io, Utf8, SliceIndexing). The bridge adapter maps each to an
// errno; see fuse/errno.go.
var (
	ErrDoubleAcquire        = errors.New("tananfs: double acquire")
	ErrDoubleRelease        = errors.New("tananfs: double release")
	ErrOutOfBounds          = errors.New("tananfs: out of bounds")
	ErrOutOfMemory          = errors.New("tananfs: out of memory")
	ErrInsufficientBytes    = errors.New("tananfs: insufficient bytes")
	ErrThreadSync           = errors.New("tananfs: thread sync")
	ErrNameOrInodeDuplicate = errors.New("tananfs: name or inode duplicate")
	ErrNotFound             = errors.New("tananfs: not found")
	ErrNullBlock            = errors.New("tananfs: null block")
	ErrDirectoryNotEmpty    = errors.New("tananfs: directory not empty")
	ErrIo                   = errors.New("tananfs: io error")
	ErrUtf8                 = errors.New("tananfs: invalid utf-8")
	ErrSliceIndexing        = errors.New("tananfs: slice indexing")

	// ErrNotADirectory and ErrNotARegularFile are returned by LoadDirectory
	// and LoadRegularFile when the inode holds the other kind of object;
	// they are not part of the closed error sum in spec §7 but have a
	// distinct identity so the bridge can map them to ENOTDIR and EISDIR.
	ErrNotADirectory   = errors.New("tananfs: not a directory")
	ErrNotARegularFile = errors.New("tananfs: not a regular file")
)
