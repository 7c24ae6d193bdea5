package tananfs

import (
	"encoding/binary"
	"fmt"

	"github.com/tananfs/tananfs/backend"
)

// Inode is the fixed 128-byte on-disk record describing one filesystem
// object (spec §3). Directory metadata is [parent, children_count,
// name_length, _, _]; regular-file metadata is [parent, _, _, _, _].
type Inode struct {
	Index      uint64
	Mode       uint16
	Type       InodeType
	Size       uint64
	Uid        uint32
	Gid        uint32
	Atime      uint64
	Ctime      uint64
	Mtime      uint64
	Dtime      uint64
	BlockCount uint64
	Metadata   [MetadataSlots]uint64
	FirstBlock uint64
	LastBlock  uint64
}

// Live reports whether the inode is a live (non-deleted) record.
func (i *Inode) Live() bool {
	return i.Dtime == NullBlock
}

// Clone returns a value copy, used by the cache to hand out independent
// snapshots.
func (i *Inode) Clone() *Inode {
	c := *i
	return &c
}

// Equal compares two inodes by value, used by the cache to detect whether a
// store actually changes anything (spec §4.4).
func (i *Inode) Equal(o *Inode) bool {
	return *i == *o
}

// ToBytes serializes the inode to its fixed 128-byte wire form, field by
// field in declared order (no unsafe struct-to-bytes casts, spec §9).
func (i *Inode) ToBytes() []byte {
	buf := make([]byte, InodeSize)
	off := 0
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], v)
		off += 4
	}
	putU16 := func(v uint16) {
		binary.LittleEndian.PutUint16(buf[off:off+2], v)
		off += 2
	}
	putU64(i.Index)
	putU16(i.Mode)
	putU16(uint16(i.Type))
	putU64(i.Size)
	putU32(i.Uid)
	putU32(i.Gid)
	putU64(i.Atime)
	putU64(i.Ctime)
	putU64(i.Mtime)
	putU64(i.Dtime)
	putU64(i.BlockCount)
	for _, m := range i.Metadata {
		putU64(m)
	}
	putU64(i.FirstBlock)
	putU64(i.LastBlock)
	// remaining bytes are reserved padding, left zeroed
	return buf
}

// InodeFromBytes decodes an inode from its fixed wire form.
func InodeFromBytes(buf []byte) (*Inode, error) {
	if uint64(len(buf)) < InodeSize {
		return nil, ErrInsufficientBytes
	}
	off := 0
	getU64 := func() uint64 {
		v := binary.LittleEndian.Uint64(buf[off : off+8])
		off += 8
		return v
	}
	getU32 := func() uint32 {
		v := binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
		return v
	}
	getU16 := func() uint16 {
		v := binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
		return v
	}
	in := &Inode{}
	in.Index = getU64()
	in.Mode = getU16()
	in.Type = InodeType(getU16())
	in.Size = getU64()
	in.Uid = getU32()
	in.Gid = getU32()
	in.Atime = getU64()
	in.Ctime = getU64()
	in.Mtime = getU64()
	in.Dtime = getU64()
	in.BlockCount = getU64()
	for m := 0; m < MetadataSlots; m++ {
		in.Metadata[m] = getU64()
	}
	in.FirstBlock = getU64()
	in.LastBlock = getU64()
	return in, nil
}

// LoadInode reads the inode at index from device.
func LoadInode(dev backend.Storage, sb *Superblock, index uint64) (*Inode, error) {
	pos, err := sb.InodePosition(index)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, InodeSize)
	if _, err := dev.ReadAt(buf, int64(pos)); err != nil {
		return nil, fmt.Errorf("tananfs: reading inode %d: %w", index, err)
	}
	in, err := InodeFromBytes(buf)
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Flush writes the inode to its position on device, in its entirety.
func (i *Inode) Flush(dev backend.WritableFile, sb *Superblock) error {
	pos, err := sb.InodePosition(i.Index)
	if err != nil {
		return err
	}
	data := i.ToBytes()
	n, err := dev.WriteAt(data, int64(pos))
	if err != nil {
		return fmt.Errorf("tananfs: flushing inode %d: %w", i.Index, err)
	}
	if n != len(data) {
		return fmt.Errorf("tananfs: %w: short write flushing inode %d", ErrIo, i.Index)
	}
	return nil
}
