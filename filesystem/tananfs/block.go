package tananfs

import (
	"encoding/binary"
	"fmt"

	"github.com/tananfs/tananfs/backend"
)

// Block is one fixed-size unit of the block region. The first
// BlockPointerSize bytes of Data hold a little-endian next-block pointer
// (NullBlock for a chain's tail); the remainder is payload (spec §3).
type Block struct {
	Index uint64
	Data  []byte
}

// NewEmptyBlock returns a zero-initialized block of the right size for
// blockSize, with its next-pointer set to NullBlock.
func NewEmptyBlock(index, blockSize uint64) *Block {
	b := &Block{Index: index, Data: make([]byte, blockSize)}
	b.SetNextPointer(NullBlock)
	return b
}

// NextPointer reads the block's next-block pointer.
func (b *Block) NextPointer() uint64 {
	return binary.LittleEndian.Uint64(b.Data[0:BlockPointerSize])
}

// SetNextPointer writes the block's next-block pointer.
func (b *Block) SetNextPointer(next uint64) {
	binary.LittleEndian.PutUint64(b.Data[0:BlockPointerSize], next)
}

// Payload returns the portion of Data after the next-pointer prefix.
func (b *Block) Payload() []byte {
	return b.Data[BlockPointerSize:]
}

// Clone returns a deep copy, used by the cache to hand out independent
// snapshots (spec §4.4/§5).
func (b *Block) Clone() *Block {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return &Block{Index: b.Index, Data: data}
}

// Equal compares two blocks by value, used by the cache to detect whether a
// store actually changes anything (spec §4.4).
func (b *Block) Equal(o *Block) bool {
	if b.Index != o.Index || len(b.Data) != len(o.Data) {
		return false
	}
	for i := range b.Data {
		if b.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// LoadBlock reads block index from device.
func LoadBlock(dev backend.Storage, sb *Superblock, index uint64) (*Block, error) {
	pos, err := sb.BlockPosition(index)
	if err != nil {
		return nil, err
	}
	data := make([]byte, sb.BlockSize)
	if _, err := dev.ReadAt(data, int64(pos)); err != nil {
		return nil, fmt.Errorf("tananfs: reading block %d: %w", index, err)
	}
	return &Block{Index: index, Data: data}, nil
}

// Flush writes the block to its position on device, in its entirety (no
// partial writes, per spec §4.3).
func (b *Block) Flush(dev backend.WritableFile, sb *Superblock) error {
	pos, err := sb.BlockPosition(b.Index)
	if err != nil {
		return err
	}
	n, err := dev.WriteAt(b.Data, int64(pos))
	if err != nil {
		return fmt.Errorf("tananfs: flushing block %d: %w", b.Index, err)
	}
	if n != len(b.Data) {
		return fmt.Errorf("tananfs: %w: short write flushing block %d", ErrIo, b.Index)
	}
	return nil
}
