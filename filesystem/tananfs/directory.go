package tananfs

import (
	"github.com/tananfs/tananfs/util/timestamp"
	"github.com/sirupsen/logrus"
)

// Directory is a live, in-memory handle onto a directory inode and its
// content stream: own name, then every child entry (spec §4.8, §4.9). It is
// modeled on original_source/src/filetypes/directory.rs, adapted to this
// package's explicit Flush/Close in place of Rust's Drop.
type Directory struct {
	fs       *Filesystem
	inode    *Inode
	file     *RawByteFile
	name     string
	children []DirectoryChild
	modified bool
	removed  bool
}

// NewDirectory acquires an inode and an empty content chain for a new
// directory, and registers it with its parent unless it IS the root
// (parent == RootInode && the freshly acquired inode == RootInode).
func NewDirectory(fs *Filesystem, parent uint64, name string, mode uint16) (*Directory, error) {
	now := uint64(timestamp.GetTime().Unix())
	index, err := fs.AcquireInode()
	if err != nil {
		return nil, err
	}
	file := NewRawByteFile(fs)
	inode := &Inode{
		Index: index,
		Mode:  mode,
		Type:  TypeDirectory,
		Uid:   0,
		Gid:   0,
		Atime: now,
		Ctime: now,
		Mtime: now,
		Dtime: NullBlock,
		Metadata: [MetadataSlots]uint64{
			parent, 0, uint64(len(name)), NullBlock, NullBlock,
		},
	}
	file.UpdateInode(inode)
	d := &Directory{fs: fs, inode: inode, file: file, name: name, modified: true}

	if !(parent == RootInode && index == RootInode) {
		parentDir, err := LoadDirectory(fs, parent)
		if err != nil {
			return nil, err
		}
		if err := parentDir.AddChild(name, index); err != nil {
			return nil, err
		}
		if err := parentDir.Flush(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// LoadDirectory reconstructs a Directory from disk: inode, content chain,
// own name, then every child entry in turn.
func LoadDirectory(fs *Filesystem, index uint64) (*Directory, error) {
	inode, err := fs.LoadInode(index)
	if err != nil {
		return nil, err
	}
	if inode.Type != TypeDirectory {
		return nil, ErrNotADirectory
	}
	childrenCount := inode.Metadata[1]
	nameLen := inode.Metadata[2]

	file := LoadRawByteFile(fs, inode)
	nameBuf := make([]byte, nameLen)
	if nameLen > 0 {
		if err := file.Read(nameBuf); err != nil {
			return nil, err
		}
	}
	children := make([]DirectoryChild, 0, childrenCount)
	for i := uint64(0); i < childrenCount; i++ {
		child, err := readDirectoryChild(file)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Directory{fs: fs, inode: inode, file: file, name: string(nameBuf), children: children}, nil
}

// Inode returns the directory's current inode record.
func (d *Directory) Inode() *Inode { return d.inode.Clone() }

// Name returns the directory's own name.
func (d *Directory) Name() string { return d.name }

// Children returns a copy of the current child list.
func (d *Directory) Children() []DirectoryChild {
	out := make([]DirectoryChild, len(d.children))
	copy(out, d.children)
	return out
}

// Lookup returns the child entry named name, if any.
func (d *Directory) Lookup(name string) (DirectoryChild, bool) {
	for _, c := range d.children {
		if c.Name == name {
			return c, true
		}
	}
	return DirectoryChild{}, false
}

// AddChild appends a new entry, rejecting a (name, inode) pair that
// already exists.
func (d *Directory) AddChild(name string, inode uint64) error {
	for _, c := range d.children {
		if c.Name == name && c.Inode == inode {
			return ErrNameOrInodeDuplicate
		}
	}
	d.children = append(d.children, DirectoryChild{Inode: inode, Name: name})
	d.inode.Metadata[1]++
	d.modified = true
	return nil
}

// RemoveChild locates the child named name, recursively removes the
// object it names (a regular file via RemoveRawByteFile-backed removal, a
// directory via RemoveEmpty), and drops it from the children list.
func (d *Directory) RemoveChild(name string) error {
	idx := -1
	for i, c := range d.children {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}
	childInode := d.children[idx].Inode

	loaded, err := d.fs.LoadInode(childInode)
	if err != nil {
		return err
	}
	switch loaded.Type {
	case TypeDirectory:
		child, err := LoadDirectory(d.fs, childInode)
		if err != nil {
			return err
		}
		if err := child.RemoveEmpty(); err != nil {
			return err
		}
	case TypeRegular:
		if err := RemoveRegularFile(d.fs, childInode); err != nil {
			return err
		}
	default:
		return ErrNotFound
	}

	d.children = append(d.children[:idx], d.children[idx+1:]...)
	d.inode.Metadata[1]--
	d.modified = true
	return nil
}

// TransferChild moves (or renames) the child named name to newName under
// newParent. Same-directory moves rename in place; cross-directory moves
// remove from this directory and add to newParent.
func (d *Directory) TransferChild(name string, newParent *Directory, newName string) error {
	idx := -1
	for i, c := range d.children {
		if c.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}
	inode := d.children[idx].Inode

	if newParent.inode.Index == d.inode.Index {
		d.children[idx].Name = newName
		d.modified = true
		return nil
	}

	if err := newParent.AddChild(newName, inode); err != nil {
		return err
	}
	d.children = append(d.children[:idx], d.children[idx+1:]...)
	d.inode.Metadata[1]--
	d.modified = true
	return nil
}

// RemoveEmpty releases the directory's content chain and inode. It fails
// with ErrDirectoryNotEmpty if any children remain.
func (d *Directory) RemoveEmpty() error {
	if len(d.children) > 0 {
		return ErrDirectoryNotEmpty
	}
	if err := d.file.Shrink(0); err != nil {
		return err
	}
	if err := d.fs.ReleaseInode(d.inode.Index); err != nil {
		return err
	}
	d.removed = true
	return nil
}

// Flush rewrites the content stream from offset 0 (own name, then every
// child), updates the inode's size/block_count/metadata/mtime fields, and
// flushes the inode. Clears the modified flag.
func (d *Directory) Flush() error {
	if _, err := d.file.Seek(SeekStart, 0); err != nil {
		return err
	}
	if err := d.file.Write([]byte(d.name)); err != nil {
		return err
	}
	for _, child := range d.children {
		if err := child.flush(d.file); err != nil {
			return err
		}
	}
	d.file.UpdateInode(d.inode)
	d.inode.Mtime = uint64(timestamp.GetTime().Unix())
	d.inode.BlockCount = d.file.BlockCount()
	// d.file.Size() is a high-water mark that never shrinks on an in-place
	// rewrite; the cursor position right after rewriting name+children is
	// the directory's actual current length.
	d.inode.Size = d.file.cursor.Position()
	d.inode.Metadata[1] = uint64(len(d.children))
	d.inode.Metadata[2] = uint64(len(d.name))
	if err := d.fs.FlushInode(d.inode); err != nil {
		return err
	}
	d.modified = false
	return nil
}

// Close implements the drop-flush policy (spec §4.9): if the directory was
// modified and not removed, it is flushed; a flush failure is logged, never
// propagated, mirroring Go's lack of destructors standing in for Rust's
// Drop.
func (d *Directory) Close() {
	if d.removed || !d.modified {
		return
	}
	if err := d.Flush(); err != nil {
		logrus.WithError(err).WithField("inode", d.inode.Index).Warn("tananfs: flush on directory close failed")
	}
}
