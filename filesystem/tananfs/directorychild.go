package tananfs

import "encoding/binary"

// DirectoryChild is one directory-entry record: an inode index plus the
// name it's bound to under that directory (spec §4.8). Unlike every other
// multi-byte integer in this package, its fields are big-endian on disk —
// a deliberate quirk of the format that must be preserved to read existing
// images.
type DirectoryChild struct {
	Inode uint64
	Name  string
}

// ToBytes serializes the entry as inode (u64 BE), name_length (u16 BE),
// then the raw name bytes.
func (c DirectoryChild) ToBytes() []byte {
	buf := make([]byte, 8+2+len(c.Name))
	binary.BigEndian.PutUint64(buf[0:8], c.Inode)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(c.Name)))
	copy(buf[10:], c.Name)
	return buf
}

// DirectoryChildFromBytes decodes one entry from the front of buf.
func DirectoryChildFromBytes(buf []byte) (DirectoryChild, error) {
	if len(buf) < 8+2 {
		return DirectoryChild{}, ErrInsufficientBytes
	}
	inode := binary.BigEndian.Uint64(buf[0:8])
	nameLen := int(binary.BigEndian.Uint16(buf[8:10]))
	if len(buf) < 8+2+nameLen {
		return DirectoryChild{}, ErrInsufficientBytes
	}
	name := string(buf[10 : 10+nameLen])
	return DirectoryChild{Inode: inode, Name: name}, nil
}

// readDirectoryChild reads one entry from file at its current cursor
// position, advancing it past the entry.
func readDirectoryChild(file *RawByteFile) (DirectoryChild, error) {
	head := make([]byte, 8+2)
	if err := file.Read(head); err != nil {
		return DirectoryChild{}, err
	}
	inode := binary.BigEndian.Uint64(head[0:8])
	nameLen := int(binary.BigEndian.Uint16(head[8:10]))
	name := make([]byte, nameLen)
	if nameLen > 0 {
		if err := file.Read(name); err != nil {
			return DirectoryChild{}, err
		}
	}
	return DirectoryChild{Inode: inode, Name: string(name)}, nil
}

// flush writes the entry to file at its current cursor position, advancing
// it past the entry.
func (c DirectoryChild) flush(file *RawByteFile) error {
	return file.Write(c.ToBytes())
}
