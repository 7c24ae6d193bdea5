// Package tananfs implements the on-disk format and write-back runtime for
// a small POSIX-like filesystem persisted on a single seekable block
// device: a fixed-layout superblock/region allocator, inode and block
// occupancy bitmaps, a singly-linked block-chain byte stream, and a
// write-back cache with LRU pruning and a time-bounded flush policy.
//
// It intentionally does not implement a FUSE kernel bridge, a CLI, or an
// interactive debugger — those are external collaborators built on top of
// the operations this package exposes (see the sibling fuse and cmd/tananfs
// packages).
package tananfs

import (
	"fmt"
	"sync"
	"time"

	"github.com/tananfs/tananfs/backend"
	"github.com/sirupsen/logrus"
)

// Filesystem owns the superblock, both bitmaps, the block device handle,
// and the write-back cache, and orchestrates time-bounded flushes (spec
// §4.5). Its exported methods take the single coarse lock described in
// spec §5 for their duration, except EnsureRoot and Close, which take it
// separately for each step they perform.
type Filesystem struct {
	mu sync.Mutex

	superblock  *Superblock
	inodeBitmap *Bitmap[Inode]
	blockBitmap *Bitmap[Block]
	device      backend.Storage
	writable    backend.WritableFile
	cache       *Cache

	lastFlush    time.Time
	everFlushed  bool
}

// New initializes in-memory state for a fresh, unformatted device of
// capacityBytes using blockSize. It panics if blockSize is not a power of
// two in [512, 8192] (spec §4.1, §7) — the one place this package treats a
// bad argument as fatal rather than returning an error.
func New(dev backend.Storage, capacityBytes, blockSize uint64) (*Filesystem, error) {
	superblock := NewSuperblock(capacityBytes, blockSize)
	writable, err := dev.Writable()
	if err != nil {
		return nil, fmt.Errorf("tananfs: device not writable: %w", err)
	}
	return &Filesystem{
		superblock:  superblock,
		inodeBitmap: NewBitmap[Inode](superblock.InodeCount),
		blockBitmap: NewBitmap[Block](superblock.BlockCount),
		device:      dev,
		writable:    writable,
		cache:       NewCache(),
	}, nil
}

// Load reads filesystem state from a previously formatted device.
func Load(dev backend.Storage, blockSize uint64) (*Filesystem, error) {
	superblock, err := LoadSuperblock(dev, blockSize)
	if err != nil {
		return nil, err
	}
	writable, err := dev.Writable()
	if err != nil {
		return nil, fmt.Errorf("tananfs: device not writable: %w", err)
	}
	inodeBitmap := NewBitmap[Inode](superblock.InodeCount)
	if err := inodeBitmap.Load(dev, superblock.bitmapRegionStart()); err != nil {
		return nil, fmt.Errorf("tananfs: loading inode bitmap: %w", err)
	}
	blockBitmap := NewBitmap[Block](superblock.BlockCount)
	if err := blockBitmap.Load(dev, superblock.blockBitmapStart()); err != nil {
		return nil, fmt.Errorf("tananfs: loading block bitmap: %w", err)
	}
	return &Filesystem{
		superblock:  superblock,
		inodeBitmap: inodeBitmap,
		blockBitmap: blockBitmap,
		device:      dev,
		writable:    writable,
		cache:       NewCache(),
	}, nil
}

// Superblock returns a snapshot of the current geometry/occupancy counters.
func (f *Filesystem) Superblock() Superblock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.superblock
}

// BlockSize returns the filesystem's block size.
func (f *Filesystem) BlockSize() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.superblock.BlockSize
}

// AcquireInode returns the lowest free inode index, marking it allocated.
func (f *Filesystem) AcquireInode() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index, ok := f.inodeBitmap.NextFree(0)
	if !ok || index >= f.superblock.InodeCount {
		return 0, ErrOutOfMemory
	}
	logrus.WithField("inode", index).Debug("tananfs: acquire inode")
	f.superblock.InodesFree--
	if err := f.inodeBitmap.Set(index, true); err != nil {
		return 0, err
	}
	f.flushLocked()
	return index, nil
}

// ReleaseInode frees inode index.
func (f *Filesystem) ReleaseInode(index uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, err := f.inodeBitmap.Get(index)
	if err != nil {
		return err
	}
	if !live {
		return ErrDoubleRelease
	}
	logrus.WithField("inode", index).Debug("tananfs: release inode")
	f.superblock.InodesFree++
	if err := f.inodeBitmap.Set(index, false); err != nil {
		return err
	}
	f.flushLocked()
	return nil
}

// AcquireBlock returns the lowest free block index, marking it allocated.
func (f *Filesystem) AcquireBlock() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	index, ok := f.blockBitmap.NextFree(0)
	if !ok || index >= f.superblock.BlockCount {
		return 0, ErrOutOfMemory
	}
	logrus.WithField("block", index).Debug("tananfs: acquire block")
	f.superblock.BlocksFree--
	if err := f.blockBitmap.Set(index, true); err != nil {
		return 0, err
	}
	f.flushLocked()
	return index, nil
}

// ReleaseBlock frees block index.
func (f *Filesystem) ReleaseBlock(index uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, err := f.blockBitmap.Get(index)
	if err != nil {
		return err
	}
	if !live {
		return ErrDoubleRelease
	}
	logrus.WithField("block", index).Debug("tananfs: release block")
	f.superblock.BlocksFree++
	if err := f.blockBitmap.Set(index, false); err != nil {
		return err
	}
	f.flushLocked()
	return nil
}

// LoadInode returns the cached-or-disk inode at index.
func (f *Filesystem) LoadInode(index uint64) (*Inode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, err := f.inodeBitmap.Get(index)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrOutOfBounds
	}
	if inode, ok := f.cache.GetInode(index); ok {
		return inode, nil
	}
	inode, err := LoadInode(f.device, f.superblock, index)
	if err != nil {
		return nil, err
	}
	f.cache.SetInode(inode)
	return inode, nil
}

// LoadBlock returns the cached-or-disk block at index. When empty is true,
// it returns a zeroed buffer with its next-pointer cleared instead of
// reading disk contents — the caller must be about to overwrite the block
// (spec §4.5).
func (f *Filesystem) LoadBlock(index uint64, empty bool) (*Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, err := f.blockBitmap.Get(index)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrOutOfBounds
	}
	if empty {
		block := NewEmptyBlock(index, f.superblock.BlockSize)
		f.cache.SetBlock(block)
		return block, nil
	}
	if block, ok := f.cache.GetBlock(index); ok {
		return block, nil
	}
	block, err := LoadBlock(f.device, f.superblock, index)
	if err != nil {
		return nil, err
	}
	f.cache.SetBlock(block)
	return block, nil
}

// FlushInode stores inode in the cache and advances the write-back timer.
// An inode that has no cache line yet is stored as modified, so the next
// force flush writes it to the device.
func (f *Filesystem) FlushInode(inode *Inode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, cached := f.cache.inodes[inode.Index]; cached {
		f.cache.SetInode(inode)
	} else {
		f.cache.inodes[inode.Index] = &cacheLine[Inode]{value: inode.Clone(), modified: true, atime: time.Now()}
	}
	f.flushLocked()
	return nil
}

// FlushBlock stores block in the cache and advances the write-back timer.
func (f *Filesystem) FlushBlock(block *Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache.SetBlock(block)
	f.flushLocked()
	return nil
}

// Flush forces a disk write only if more than DirtyPageMaxSeconds have
// elapsed since the last force flush (spec §4.5, §5).
func (f *Filesystem) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}

func (f *Filesystem) flushLocked() error {
	if f.everFlushed && time.Since(f.lastFlush) < DirtyPageMaxSeconds {
		return nil
	}
	return f.forceFlushLocked()
}

// ForceFlush prunes the cache, writes every modified line, then the
// superblock, then the inode bitmap, then the block bitmap — a best-effort
// consistency order, not a journaling guarantee (spec §4.5, §5).
func (f *Filesystem) ForceFlush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forceFlushLocked()
}

func (f *Filesystem) forceFlushLocked() error {
	logrus.Info("tananfs: force flush")
	f.cache.Prune()
	err := f.cache.FlushDirty(
		func(inode *Inode) error { return inode.Flush(f.writable, f.superblock) },
		func(block *Block) error { return block.Flush(f.writable, f.superblock) },
	)
	if err != nil {
		return err
	}
	if err := f.superblock.Flush(f.writable); err != nil {
		return err
	}
	if err := f.inodeBitmap.Flush(f.writable, f.superblock.bitmapRegionStart()); err != nil {
		return err
	}
	if err := f.blockBitmap.Flush(f.writable, f.superblock.blockBitmapStart()); err != nil {
		return err
	}
	f.lastFlush = time.Now()
	f.everFlushed = true
	return nil
}

// EnsureRoot implements the init step from spec §6: if the root directory
// (inode RootInode) is not live, it marks the sentinel inode 0 allocated
// and formats a root directory named "root" with mode 0o750, then force-
// flushes. It is idempotent.
func (f *Filesystem) EnsureRoot() error {
	f.mu.Lock()
	rootLive, err := f.inodeBitmap.Get(RootInode)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if rootLive {
		return nil
	}

	if err := f.markSentinel(); err != nil {
		return err
	}

	dir, err := NewDirectory(f, RootInode, "root", 0o750)
	if err != nil {
		return err
	}
	if err := dir.Flush(); err != nil {
		return err
	}
	return f.ForceFlush()
}

func (f *Filesystem) markSentinel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	live, err := f.inodeBitmap.Get(sentinelInode)
	if err != nil {
		return err
	}
	if live {
		return nil
	}
	f.superblock.InodesFree--
	if err := f.inodeBitmap.Set(sentinelInode, true); err != nil {
		return err
	}
	return nil
}

// Close force-flushes pending state and closes the backing device.
func (f *Filesystem) Close() error {
	if err := f.ForceFlush(); err != nil {
		return err
	}
	return f.device.Close()
}
