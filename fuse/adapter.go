package fuse

import (
	"context"
	"syscall"
	"time"

	fusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/tananfs/tananfs/filesystem/tananfs"
)

const entryTimeout = time.Second

// Node is a FUSE inode, a thin adapter over a core inode index. It holds no
// cached content of its own — every operation re-loads the inode or
// directory/file handle it needs from the core, which owns the cache
// (spec §5).
type Node struct {
	fusefs.Inode

	fsys  *tananfs.Filesystem
	index uint64
}

var (
	_ fusefs.InodeEmbedder  = (*Node)(nil)
	_ fusefs.NodeLookuper   = (*Node)(nil)
	_ fusefs.NodeReaddirer  = (*Node)(nil)
	_ fusefs.NodeGetattrer  = (*Node)(nil)
	_ fusefs.NodeSetattrer  = (*Node)(nil)
	_ fusefs.NodeOpener     = (*Node)(nil)
	_ fusefs.NodeOpendirer  = (*Node)(nil)
	_ fusefs.NodeReader     = (*Node)(nil)
	_ fusefs.NodeWriter     = (*Node)(nil)
	_ fusefs.NodeMknoder    = (*Node)(nil)
	_ fusefs.NodeMkdirer    = (*Node)(nil)
	_ fusefs.NodeUnlinker   = (*Node)(nil)
	_ fusefs.NodeRmdirer    = (*Node)(nil)
	_ fusefs.NodeRenamer    = (*Node)(nil)
	_ fusefs.NodeAllocater  = (*Node)(nil)
	_ fusefs.NodeFsyncer    = (*Node)(nil)
	_ fusefs.NodeFlusher    = (*Node)(nil)
	_ fusefs.NodeStatfser   = (*Node)(nil)
)

// Root builds the FUSE root node for fsys, running the core's init step
// first (spec §6 "init").
func Root(fsys *tananfs.Filesystem) (fusefs.InodeEmbedder, error) {
	if err := fsys.EnsureRoot(); err != nil {
		return nil, err
	}
	return &Node{fsys: fsys, index: tananfs.RootInode}, nil
}

// Mount mounts fsys at mountpoint and returns the running server.
func Mount(mountpoint string, fsys *tananfs.Filesystem) (*fusefs.Server, error) {
	root, err := Root(fsys)
	if err != nil {
		return nil, err
	}
	return fusefs.Mount(mountpoint, root, &fusefs.Options{
		MountOptions: fuse.MountOptions{
			FsName: "tananfs",
			Name:   "tananfs",
		},
	})
}

func (n *Node) newChild(ctx context.Context, index uint64, typ tananfs.InodeType) *fusefs.Inode {
	mode := uint32(syscall.S_IFREG)
	if typ == tananfs.TypeDirectory {
		mode = syscall.S_IFDIR
	}
	child := &Node{fsys: n.fsys, index: index}
	return n.NewInode(ctx, child, fusefs.StableAttr{Mode: mode, Ino: index})
}

func (n *Node) fillAttr(attr *fuse.Attr, inode *tananfs.Inode) {
	attr.Ino = inode.Index
	attr.Size = inode.Size
	attr.Blocks = inode.BlockCount
	mode := uint32(inode.Mode) & 0o7777
	if inode.Type == tananfs.TypeDirectory {
		mode |= syscall.S_IFDIR
		attr.Nlink = 2
	} else {
		mode |= syscall.S_IFREG
		attr.Nlink = 1
	}
	attr.Mode = mode
	attr.Owner = fuse.Owner{Uid: inode.Uid, Gid: inode.Gid}
	attr.Atime = inode.Atime
	attr.Mtime = inode.Mtime
	attr.Ctime = inode.Ctime
	attr.Blksize = uint32(n.fsys.BlockSize() - tananfs.BlockPointerSize)
}

func (n *Node) fillEntryOut(out *fuse.EntryOut, inode *tananfs.Inode) {
	out.NodeId = inode.Index
	n.fillAttr(&out.Attr, inode)
	out.SetEntryTimeout(entryTimeout)
	out.SetAttrTimeout(entryTimeout)
}

// Lookup implements spec §6 "lookup(parent, name) → attr".
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	dir, err := tananfs.LoadDirectory(n.fsys, n.index)
	if err != nil {
		return nil, errnoFor(err)
	}
	child, ok := dir.Lookup(name)
	if !ok {
		return nil, syscall.ENOENT
	}
	inode, err := n.fsys.LoadInode(child.Inode)
	if err != nil {
		return nil, errnoFor(err)
	}
	n.fillEntryOut(out, inode)
	return n.newChild(ctx, child.Inode, inode.Type), 0
}

// Readdir implements spec §6 "readdir(ino, offset)": go-fuse's
// ListDirStream owns the offset bookkeeping, so this just builds the full
// "."/".."/children listing once per call.
func (n *Node) Readdir(ctx context.Context) (fusefs.DirStream, syscall.Errno) {
	dir, err := tananfs.LoadDirectory(n.fsys, n.index)
	if err != nil {
		return nil, errnoFor(err)
	}
	parent := dir.Inode().Metadata[0]
	entries := []fuse.DirEntry{
		{Name: ".", Ino: n.index, Mode: syscall.S_IFDIR},
		{Name: "..", Ino: parent, Mode: syscall.S_IFDIR},
	}
	for _, c := range dir.Children() {
		child, err := n.fsys.LoadInode(c.Inode)
		if err != nil {
			return nil, errnoFor(err)
		}
		mode := uint32(syscall.S_IFREG)
		if child.Type == tananfs.TypeDirectory {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: c.Name, Ino: c.Inode, Mode: mode})
	}
	return fusefs.NewListDirStream(entries), 0
}

// Getattr implements spec §6 "getattr".
func (n *Node) Getattr(ctx context.Context, f fusefs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	inode, err := n.fsys.LoadInode(n.index)
	if err != nil {
		return errnoFor(err)
	}
	n.fillAttr(&out.Attr, inode)
	return 0
}

// Setattr implements spec §6 "setattr": field-level updates for mode, uid,
// gid only; every other attribute is ignored.
func (n *Node) Setattr(ctx context.Context, f fusefs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	inode, err := n.fsys.LoadInode(n.index)
	if err != nil {
		return errnoFor(err)
	}
	if mode, ok := in.GetMode(); ok {
		inode.Mode = uint16(mode & 0o7777)
	}
	if uid, ok := in.GetUID(); ok {
		inode.Uid = uid
	}
	if gid, ok := in.GetGID(); ok {
		inode.Gid = gid
	}
	if err := n.fsys.FlushInode(inode); err != nil {
		return errnoFor(err)
	}
	n.fillAttr(&out.Attr, inode)
	return 0
}

// Open implements spec §6 "open": a type check only, no file handle
// allocated.
func (n *Node) Open(ctx context.Context, flags uint32) (fusefs.FileHandle, uint32, syscall.Errno) {
	inode, err := n.fsys.LoadInode(n.index)
	if err != nil {
		return nil, 0, errnoFor(err)
	}
	if inode.Type != tananfs.TypeRegular {
		return nil, 0, syscall.EISDIR
	}
	return nil, 0, 0
}

// Opendir implements spec §6 "opendir": a type check only.
func (n *Node) Opendir(ctx context.Context) syscall.Errno {
	inode, err := n.fsys.LoadInode(n.index)
	if err != nil {
		return errnoFor(err)
	}
	if inode.Type != tananfs.TypeDirectory {
		return syscall.ENOTDIR
	}
	return 0
}

// Read implements spec §6 "read(ino, off, size) → bytes".
func (n *Node) Read(ctx context.Context, f fusefs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	file, err := tananfs.LoadRegularFile(n.fsys, n.index)
	if err != nil {
		return nil, errnoFor(err)
	}
	data, err := file.Read(uint64(off), uint64(len(dest)))
	if err != nil {
		return nil, errnoFor(err)
	}
	return fuse.ReadResultData(data), 0
}

// Write implements spec §6 "write(ino, off, data) → bytes_written": always
// writes the full buffer on success.
func (n *Node) Write(ctx context.Context, f fusefs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	file, err := tananfs.LoadRegularFile(n.fsys, n.index)
	if err != nil {
		return 0, errnoFor(err)
	}
	if err := file.Write(uint64(off), data); err != nil {
		return 0, errnoFor(err)
	}
	if err := file.Flush(); err != nil {
		return 0, errnoFor(err)
	}
	return uint32(len(data)), 0
}

// Mknod implements spec §6 "mknod(parent, name, mode)".
func (n *Node) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	dir, err := tananfs.LoadDirectory(n.fsys, n.index)
	if err != nil {
		return nil, errnoFor(err)
	}
	file, err := tananfs.NewRegularFile(n.fsys, dir, name, uint16(mode&0o7777))
	if err != nil {
		return nil, errnoFor(err)
	}
	if err := file.Flush(); err != nil {
		return nil, errnoFor(err)
	}
	inode := file.Inode()
	n.fillEntryOut(out, inode)
	return n.newChild(ctx, inode.Index, tananfs.TypeRegular), 0
}

// Mkdir implements spec §6 "mkdir(parent, name, mode)".
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	dir, err := tananfs.NewDirectory(n.fsys, n.index, name, uint16(mode&0o7777))
	if err != nil {
		return nil, errnoFor(err)
	}
	if err := dir.Flush(); err != nil {
		return nil, errnoFor(err)
	}
	inode := dir.Inode()
	n.fillEntryOut(out, inode)
	return n.newChild(ctx, inode.Index, tananfs.TypeDirectory), 0
}

// Unlink implements spec §6 "unlink(parent, name)": removes a regular-file
// child.
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	dir, err := tananfs.LoadDirectory(n.fsys, n.index)
	if err != nil {
		return errnoFor(err)
	}
	child, ok := dir.Lookup(name)
	if !ok {
		return syscall.ENOENT
	}
	inode, err := n.fsys.LoadInode(child.Inode)
	if err != nil {
		return errnoFor(err)
	}
	if inode.Type != tananfs.TypeRegular {
		return syscall.EISDIR
	}
	if err := dir.RemoveChild(name); err != nil {
		return errnoFor(err)
	}
	return errnoFor(dir.Flush())
}

// Rmdir implements spec §6 "rmdir(parent, name)": removes an
// empty-directory child.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	dir, err := tananfs.LoadDirectory(n.fsys, n.index)
	if err != nil {
		return errnoFor(err)
	}
	child, ok := dir.Lookup(name)
	if !ok {
		return syscall.ENOENT
	}
	inode, err := n.fsys.LoadInode(child.Inode)
	if err != nil {
		return errnoFor(err)
	}
	if inode.Type != tananfs.TypeDirectory {
		return syscall.ENOTDIR
	}
	if err := dir.RemoveChild(name); err != nil {
		return errnoFor(err)
	}
	return errnoFor(dir.Flush())
}

// Rename implements spec §6 "rename(parent, name, newparent, newname)" via
// Directory.TransferChild.
func (n *Node) Rename(ctx context.Context, name string, newParent fusefs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	dir, err := tananfs.LoadDirectory(n.fsys, n.index)
	if err != nil {
		return errnoFor(err)
	}
	target, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}
	destDir := dir
	if target.index != n.index {
		destDir, err = tananfs.LoadDirectory(n.fsys, target.index)
		if err != nil {
			return errnoFor(err)
		}
	}
	if err := dir.TransferChild(name, destDir, newName); err != nil {
		return errnoFor(err)
	}
	if err := dir.Flush(); err != nil {
		return errnoFor(err)
	}
	if destDir != dir {
		return errnoFor(destDir.Flush())
	}
	return 0
}

// Allocate implements spec §6 "fallocate(ino, off, len, mode)": resizes the
// file to size − off + len via extend or shrink, then sets mode. This
// formula (not off+len) is a quirk of the format's fallocate semantics,
// preserved from the implementation it was ported from.
func (n *Node) Allocate(ctx context.Context, f fusefs.FileHandle, off, size uint64, mode uint32) syscall.Errno {
	file, err := tananfs.LoadRegularFile(n.fsys, n.index)
	if err != nil {
		return errnoFor(err)
	}
	currentSize := file.Size()
	newSize := currentSize - off + size
	if err := file.Resize(newSize); err != nil {
		return errnoFor(err)
	}
	file.SetMode(uint16(mode))
	return errnoFor(file.Flush())
}

// Fsync implements spec §6 "fsync": force_flush.
func (n *Node) Fsync(ctx context.Context, f fusefs.FileHandle, flags uint32) syscall.Errno {
	return errnoFor(n.fsys.ForceFlush())
}

// Flush implements spec §6 "flush": the time-bounded flush.
func (n *Node) Flush(ctx context.Context, f fusefs.FileHandle) syscall.Errno {
	return errnoFor(n.fsys.Flush())
}

// Statfs implements spec §6 "statfs".
func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	sb := n.fsys.Superblock()
	out.Blocks = sb.BlockCount
	out.Bfree = sb.BlocksFree
	out.Bavail = sb.BlocksFree
	out.Files = sb.InodeCount - sb.InodesFree
	out.Ffree = sb.InodesFree
	out.Bsize = uint32(sb.BlockSize - tananfs.BlockPointerSize)
	out.NameLen = 65535
	out.Frsize = uint32(sb.BlockSize - tananfs.BlockPointerSize)
	return 0
}
