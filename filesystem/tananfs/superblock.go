package tananfs

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/tananfs/tananfs/backend"
)

// Superblock is the fixed 1024-byte on-disk geometry header, written at
// byte offset block_size on the device (the first block is an unused boot
// sector). All fields are pure geometry: given a capacity and block size,
// Superblock computes where every other region lives (spec §3, §4.1).
type Superblock struct {
	InodeCount  uint64
	InodesFree  uint64
	BlockCount  uint64
	BlocksFree  uint64
	BlockSize   uint64
	Magic       uint16
}

// validateBlockSize asserts the invariant from spec §4.1: block_size must be
// a power of two in the closed range [512, 8192]. This is a fatal
// construction-time condition (spec §7) and panics rather than returning an
// error.
func validateBlockSize(blockSize uint64) {
	if blockSize < minBlockSize || blockSize > maxBlockSize || bits.OnesCount64(blockSize) != 1 {
		panic(fmt.Sprintf("tananfs: invalid block size %d, must be a power of two in [%d, %d]", blockSize, minBlockSize, maxBlockSize))
	}
}

// sizeInBytes computes a bitmap region's on-disk size: the next power of
// two of count/8 bytes, with a 1024-byte minimum (spec §4.2).
func sizeInBytes(count uint64) uint64 {
	need := (count + 7) / 8
	if need == 0 {
		return 1024
	}
	size := uint64(1)
	for size < need {
		size <<= 1
	}
	if size < 1024 {
		return 1024
	}
	return size
}

func alignUp(value, align uint64) uint64 {
	if align == 0 {
		return value
	}
	rem := value % align
	if rem == 0 {
		return value
	}
	return value + (align - rem)
}

// NewSuperblock computes the geometry of a fresh, unformatted filesystem for
// a device of capacityBytes using the given blockSize (spec §4.1).
//
// It derives a usable capacity by subtracting the boot sector, the
// superblock, both bitmaps sized against a worst-case estimate of the
// counts they will index, and the (block-aligned) inode region, then
// rounds the remainder down to a multiple of blockSize. inode_count and
// block_count are then computed from that usable capacity. Because the
// bitmaps were sized against the worst-case estimate rather than the final
// counts, the bitmap storage may be (and typically is) slightly larger
// than inode_count/block_count — callers must treat an index equal to the
// count, not just a failed bitmap scan, as exhaustion (spec §4.5).
func NewSuperblock(capacityBytes, blockSize uint64) *Superblock {
	validateBlockSize(blockSize)

	estimateInodeCount := capacityBytes / DataPerInode
	estimateBlockCount := capacityBytes / blockSize

	inodeBitmapMax := sizeInBytes(estimateInodeCount)
	blockBitmapMax := sizeInBytes(estimateBlockCount)
	inodeRegionMax := alignUp(estimateInodeCount*InodeSize, blockSize)

	overhead := blockSize + SuperblockSize + inodeBitmapMax + blockBitmapMax + inodeRegionMax

	var usable uint64
	if overhead < capacityBytes {
		usable = capacityBytes - overhead
	}
	usable -= usable % blockSize

	inodeCount := usable / DataPerInode
	blockCount := usable / blockSize

	return &Superblock{
		InodeCount: inodeCount,
		InodesFree: inodeCount,
		BlockCount: blockCount,
		BlocksFree: blockCount,
		BlockSize:  blockSize,
		Magic:      MagicSignature,
	}
}

// bitmapRegionStart is the absolute byte offset of the inode bitmap.
func (s *Superblock) bitmapRegionStart() uint64 {
	return s.BlockSize + SuperblockSize
}

// inodeBitmapSize is the on-disk size reserved for the inode bitmap.
func (s *Superblock) inodeBitmapSize() uint64 {
	return sizeInBytes(s.InodeCount)
}

// blockBitmapSize is the on-disk size reserved for the block bitmap.
func (s *Superblock) blockBitmapSize() uint64 {
	return sizeInBytes(s.BlockCount)
}

// blockBitmapStart is the absolute byte offset of the block bitmap.
func (s *Superblock) blockBitmapStart() uint64 {
	return s.bitmapRegionStart() + s.inodeBitmapSize()
}

// inodeRegionStart is the absolute byte offset of the inode region.
func (s *Superblock) inodeRegionStart() uint64 {
	return alignUp(s.blockBitmapStart()+s.blockBitmapSize(), s.BlockSize)
}

// inodeRegionSize is the block-aligned size of the inode region.
func (s *Superblock) inodeRegionSize() uint64 {
	return alignUp(s.InodeCount*InodeSize, s.BlockSize)
}

// blockRegionStart is the absolute byte offset of the block region.
func (s *Superblock) blockRegionStart() uint64 {
	return s.inodeRegionStart() + s.inodeRegionSize()
}

// InodePosition returns the absolute byte offset of inode index i.
func (s *Superblock) InodePosition(i uint64) (uint64, error) {
	if i >= s.InodeCount {
		return 0, ErrOutOfBounds
	}
	return s.inodeRegionStart() + i*InodeSize, nil
}

// BlockPosition returns the absolute byte offset of block index i.
func (s *Superblock) BlockPosition(i uint64) (uint64, error) {
	if i >= s.BlockCount {
		return 0, ErrOutOfBounds
	}
	return s.blockRegionStart() + i*s.BlockSize, nil
}

// ToBytes serializes the superblock to its fixed 1024-byte wire form,
// writing each field explicitly in declared order (no unsafe struct-to-
// bytes casts, per spec §9 Design Notes).
func (s *Superblock) ToBytes() []byte {
	buf := make([]byte, SuperblockSize)
	binary.LittleEndian.PutUint64(buf[0:8], s.InodeCount)
	binary.LittleEndian.PutUint64(buf[8:16], s.InodesFree)
	binary.LittleEndian.PutUint64(buf[16:24], s.BlockCount)
	binary.LittleEndian.PutUint64(buf[24:32], s.BlocksFree)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(s.BlockSize))
	binary.LittleEndian.PutUint16(buf[MagicOffset:MagicOffset+2], s.Magic)
	return buf
}

// SuperblockFromBytes decodes a superblock from its fixed wire form.
func SuperblockFromBytes(buf []byte) (*Superblock, error) {
	if uint64(len(buf)) < SuperblockSize {
		return nil, ErrInsufficientBytes
	}
	s := &Superblock{
		InodeCount: binary.LittleEndian.Uint64(buf[0:8]),
		InodesFree: binary.LittleEndian.Uint64(buf[8:16]),
		BlockCount: binary.LittleEndian.Uint64(buf[16:24]),
		BlocksFree: binary.LittleEndian.Uint64(buf[24:32]),
		BlockSize:  uint64(binary.LittleEndian.Uint32(buf[32:36])),
		Magic:      binary.LittleEndian.Uint16(buf[MagicOffset : MagicOffset+2]),
	}
	return s, nil
}

// LoadSuperblock reads the superblock from device at its fixed position for
// the given blockSize.
func LoadSuperblock(dev backend.Storage, blockSize uint64) (*Superblock, error) {
	buf := make([]byte, SuperblockSize)
	if _, err := dev.ReadAt(buf, int64(blockSize)); err != nil {
		return nil, fmt.Errorf("tananfs: reading superblock: %w", err)
	}
	sb, err := SuperblockFromBytes(buf)
	if err != nil {
		return nil, err
	}
	if sb.Magic != MagicSignature {
		return nil, fmt.Errorf("tananfs: %w: bad magic signature", ErrIo)
	}
	return sb, nil
}

// Flush writes the superblock to its fixed position on device.
func (s *Superblock) Flush(dev backend.WritableFile) error {
	if _, err := dev.WriteAt(s.ToBytes(), int64(s.BlockSize)); err != nil {
		return fmt.Errorf("tananfs: flushing superblock: %w", err)
	}
	return nil
}

// DetectBlockSize probes candidate block sizes 2^9..2^13 by checking the
// magic signature at the position it would occupy for each candidate,
// returning the first one that matches (spec §4.1).
func DetectBlockSize(dev backend.Storage) (uint64, bool, error) {
	buf := make([]byte, 2)
	for pow := uint(9); pow <= 13; pow++ {
		blockSize := uint64(1) << pow
		if _, err := dev.ReadAt(buf, int64(blockSize+MagicOffset)); err != nil {
			continue
		}
		if binary.LittleEndian.Uint16(buf) == MagicSignature {
			return blockSize, true, nil
		}
	}
	return 0, false, nil
}
