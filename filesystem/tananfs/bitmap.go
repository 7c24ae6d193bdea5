package tananfs

import (
	"encoding/binary"
	"math/bits"

	"github.com/tananfs/tananfs/backend"
)

// Bitmap[T] is an occupancy vector for one region of the filesystem: bit i
// set means record i of that region is allocated (spec §3, §4.2). The type
// parameter is a compile-time-only tag distinguishing an inode bitmap from
// a block bitmap — mirroring the PhantomData<T> marker in the original
// Rust implementation (original_source/src/structs/bitmap.rs) — and is
// never instantiated.
type Bitmap[T any] struct {
	words []uint64
	count uint64
}

// NewBitmap allocates a fresh, all-free bitmap sized to index count records.
func NewBitmap[T any](count uint64) *Bitmap[T] {
	numWords := sizeInBytes(count) / 8
	return &Bitmap[T]{
		words: make([]uint64, numWords),
		count: count,
	}
}

// Len returns the number of bits backing the bitmap, which may exceed
// count due to the power-of-two rounding in sizeInBytes.
func (b *Bitmap[T]) Len() uint64 {
	return uint64(len(b.words)) * 64
}

func (b *Bitmap[T]) wordAndBit(index uint64) (uint64, uint64) {
	return index / 64, index % 64
}

// Get reports whether index is allocated.
func (b *Bitmap[T]) Get(index uint64) (bool, error) {
	if index >= b.count {
		return false, ErrOutOfBounds
	}
	w, bit := b.wordAndBit(index)
	return b.words[w]&(uint64(1)<<bit) != 0, nil
}

// Set marks index allocated (value=true) or free (value=false).
func (b *Bitmap[T]) Set(index uint64, value bool) error {
	if index >= b.count {
		return ErrOutOfBounds
	}
	w, bit := b.wordAndBit(index)
	if value {
		b.words[w] |= uint64(1) << bit
	} else {
		b.words[w] &^= uint64(1) << bit
	}
	return nil
}

// NextFree scans for the first unallocated bit at or after after, skipping
// fully-allocated words whole (spec §4.2). It scans the full backing
// storage, which may be larger than count — callers that must stay within
// count check the returned index themselves (spec §4.5).
func (b *Bitmap[T]) NextFree(after uint64) (uint64, bool) {
	startWord, startBit := b.wordAndBit(after)
	for wi := startWord; wi < uint64(len(b.words)); wi++ {
		w := b.words[wi]
		if w == ^uint64(0) {
			continue
		}
		lo := uint64(0)
		if wi == startWord {
			lo = startBit
		}
		for bit := lo; bit < 64; bit++ {
			if w&(uint64(1)<<bit) == 0 {
				return wi*64 + bit, true
			}
		}
	}
	return 0, false
}

// ToBytes serializes the bitmap to its on-disk byte form: each in-memory
// word is packed little-endian, so a byte's bit j (LSB = 0) represents
// index = byteIndex*8 + j — matching the on-disk little-endian bit-per-
// byte layout while the in-memory representation stays machine words
// (spec §4.2).
func (b *Bitmap[T]) ToBytes() []byte {
	buf := make([]byte, len(b.words)*8)
	for i, w := range b.words {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], w)
	}
	return buf
}

// FromBytes overwrites the bitmap's contents with buf, which must be
// exactly len(words)*8 bytes — the same size ToBytes would have produced.
func (b *Bitmap[T]) FromBytes(buf []byte) error {
	if len(buf) != len(b.words)*8 {
		return ErrInsufficientBytes
	}
	for i := range b.words {
		b.words[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	return nil
}

// Load reads the bitmap from device at the given absolute byte offset.
func (b *Bitmap[T]) Load(dev backend.Storage, offset uint64) error {
	buf := make([]byte, len(b.words)*8)
	if _, err := dev.ReadAt(buf, int64(offset)); err != nil {
		return err
	}
	return b.FromBytes(buf)
}

// Flush writes the bitmap to device at the given absolute byte offset.
func (b *Bitmap[T]) Flush(dev backend.WritableFile, offset uint64) error {
	_, err := dev.WriteAt(b.ToBytes(), int64(offset))
	return err
}

// popcount reports the number of allocated bits across all backing words;
// it is used by tests.
func (b *Bitmap[T]) popcount() uint64 {
	var n uint64
	for _, w := range b.words {
		n += uint64(bits.OnesCount64(w))
	}
	return n
}
