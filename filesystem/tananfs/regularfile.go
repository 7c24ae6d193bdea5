package tananfs

import (
	"time"

	"github.com/tananfs/tananfs/util/timestamp"
	"github.com/sirupsen/logrus"
)

// RegularFile is a live, in-memory handle onto a regular-file inode and its
// content chain (spec §4.9), modeled on
// original_source/src/filetypes/regular_file.rs.
type RegularFile struct {
	fs       *Filesystem
	inode    *Inode
	file     *RawByteFile
	modified bool
	removed  bool
}

// NewRegularFile acquires an inode and an empty content chain for a new
// regular file, stores its inode record, and appends itself to parentDir.
func NewRegularFile(fs *Filesystem, parentDir *Directory, name string, mode uint16) (*RegularFile, error) {
	now := uint64(timestamp.GetTime().Unix())
	index, err := fs.AcquireInode()
	if err != nil {
		return nil, err
	}
	file := NewRawByteFile(fs)
	inode := &Inode{
		Index: index,
		Mode:  mode,
		Type:  TypeRegular,
		Uid:   0,
		Gid:   0,
		Atime: now,
		Ctime: now,
		Mtime: now,
		Dtime: NullBlock,
		Metadata: [MetadataSlots]uint64{
			parentDir.inode.Index, NullBlock, NullBlock, NullBlock, NullBlock,
		},
	}
	file.UpdateInode(inode)
	if err := fs.FlushInode(inode); err != nil {
		return nil, err
	}
	rf := &RegularFile{fs: fs, inode: inode, file: file}

	if err := parentDir.AddChild(name, index); err != nil {
		return nil, err
	}
	if err := parentDir.Flush(); err != nil {
		return nil, err
	}
	return rf, nil
}

// LoadRegularFile reconstructs a RegularFile from disk.
func LoadRegularFile(fs *Filesystem, index uint64) (*RegularFile, error) {
	inode, err := fs.LoadInode(index)
	if err != nil {
		return nil, err
	}
	if inode.Type != TypeRegular {
		return nil, ErrNotARegularFile
	}
	file := LoadRawByteFile(fs, inode)
	return &RegularFile{fs: fs, inode: inode, file: file}, nil
}

// Inode returns the file's current inode record.
func (f *RegularFile) Inode() *Inode { return f.inode.Clone() }

// Size returns the file's current content length.
func (f *RegularFile) Size() uint64 { return f.file.Size() }

// Read seeks to offset and reads at most size bytes, clamped so the read
// never overruns EOF, then updates atime.
func (f *RegularFile) Read(offset, size uint64) ([]byte, error) {
	pos, err := f.file.Seek(SeekStart, int64(offset))
	if err != nil {
		return nil, err
	}
	if pos != offset {
		return nil, ErrInsufficientBytes
	}
	lookahead := f.file.Size() - f.file.cursor.Position()
	readSize := size
	if readSize > lookahead {
		readSize = lookahead
	}
	buf := make([]byte, readSize)
	if err := f.file.Read(buf); err != nil {
		return nil, err
	}
	f.inode.Atime = uint64(timestamp.GetTime().Unix())
	return buf, nil
}

// Write seeks to offset, writes data in full, updates atime/mtime, and
// marks the file modified.
func (f *RegularFile) Write(offset uint64, data []byte) error {
	pos, err := f.file.Seek(SeekStart, int64(offset))
	if err != nil {
		return err
	}
	if pos != offset {
		return ErrInsufficientBytes
	}
	now := uint64(timestamp.GetTime().Unix())
	f.inode.Atime = now
	f.inode.Mtime = now
	if err := f.file.Write(data); err != nil {
		return err
	}
	f.modified = true
	return nil
}

// Resize extends or shrinks the file's content chain to newSize, via
// RawByteFile.Extend or RawByteFile.Shrink, and marks the file modified.
func (f *RegularFile) Resize(newSize uint64) error {
	var err error
	if newSize >= f.file.Size() {
		err = f.file.Extend(newSize)
	} else {
		err = f.file.Shrink(newSize)
	}
	if err != nil {
		return err
	}
	f.modified = true
	return nil
}

// SetMode overwrites the inode's permission bits and marks the file
// modified.
func (f *RegularFile) SetMode(mode uint16) {
	f.inode.Mode = mode
	f.modified = true
}

// SetAccessTime overwrites the inode's atime, used by callers importing a
// file from a host filesystem that want to preserve its recorded access
// time rather than stamping the moment of import.
func (f *RegularFile) SetAccessTime(t time.Time) {
	f.inode.Atime = uint64(t.Unix())
	f.modified = true
}

// RemoveRegularFile releases the content chain of the regular file at
// inodeIndex and its inode.
func RemoveRegularFile(fs *Filesystem, inodeIndex uint64) error {
	return RemoveRawByteFile(fs, inodeIndex)
}

// Remove releases the file's content chain and inode, and marks it removed
// so Close skips the drop-flush.
func (f *RegularFile) Remove() error {
	if err := f.file.Shrink(0); err != nil {
		return err
	}
	if err := f.fs.ReleaseInode(f.inode.Index); err != nil {
		return err
	}
	f.removed = true
	return nil
}

// Flush writes first_block/last_block/block_count/size/mtime back into the
// inode and flushes it. Clears the modified flag.
func (f *RegularFile) Flush() error {
	f.file.UpdateInode(f.inode)
	f.inode.Mtime = uint64(timestamp.GetTime().Unix())
	f.inode.BlockCount = f.file.BlockCount()
	f.inode.Size = f.file.Size()
	if err := f.fs.FlushInode(f.inode); err != nil {
		return err
	}
	f.modified = false
	return nil
}

// Close implements the drop-flush policy (spec §4.9): if the file was
// modified and not removed, it is flushed; a flush failure is logged, never
// propagated.
func (f *RegularFile) Close() {
	if f.removed || !f.modified {
		return
	}
	if err := f.Flush(); err != nil {
		logrus.WithError(err).WithField("inode", f.inode.Index).Warn("tananfs: flush on file close failed")
	}
}
