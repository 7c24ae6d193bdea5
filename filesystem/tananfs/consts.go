package tananfs

import "time"

// On-disk constants fixed by the format (spec §3, §6). Changing any of
// these breaks compatibility with existing images.
const (
	// MagicSignature identifies a formatted tananfs image.
	MagicSignature uint16 = 0xEF53

	// NullBlock marks the tail of a block chain (spec §3).
	NullBlock uint64 = ^uint64(0)

	// InodeSize is the fixed on-disk size of a packed Inode record.
	InodeSize uint64 = 128

	// SuperblockSize is the fixed on-disk size of the Superblock record.
	SuperblockSize uint64 = 1024

	// MagicOffset is the byte offset of the magic signature within the
	// superblock record (spec §3).
	MagicOffset uint64 = 0x38

	// MetadataSlots is the arity of an Inode's opaque metadata array.
	MetadataSlots = 5

	// DataPerInode sets the inode_count = usable/DataPerInode ratio (spec §4.1).
	DataPerInode uint64 = 4096

	// BlockPointerSize is the width of a block's leading next-pointer prefix.
	BlockPointerSize uint64 = 8

	// RootInode is the fixed index of the root directory (spec §3).
	RootInode uint64 = 1

	// sentinelInode is always marked allocated and never otherwise used.
	sentinelInode uint64 = 0

	minBlockSize uint64 = 512
	maxBlockSize uint64 = 8192
)

// DirtyPageMaxSeconds bounds how long a mutation can sit in the write-back
// cache before force_flush is triggered automatically (spec §4.5, §5).
const DirtyPageMaxSeconds = 1 * time.Second

// LRUMaxEntries bounds how many unmodified cache lines survive a prune pass
// (spec §4.4).
const LRUMaxEntries = 131072

// InodeType distinguishes the two kinds of filesystem object the format
// supports (spec §3). Symlinks, devices, and other node kinds are Non-goals.
type InodeType uint16

const (
	TypeRegular   InodeType = 1
	TypeDirectory InodeType = 2
)

func (t InodeType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}
