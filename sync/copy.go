// Package sync imports a host directory tree into a tananfs image, and
// verifies the result against the original tree, mirroring the bulk
// copy/verify helpers a disk-image library offers around its own
// filesystem.FileSystem implementations.
package sync

import (
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/tananfs/tananfs/filesystem/tananfs"
)

// excludedPaths are never copied in, regardless of source.
var excludedPaths = map[string]bool{
	"lost+found":                true,
	".DS_Store":                 true,
	"System Volume Information": true,
}

const (
	maxCopyAllSize = 64 * 1024 * 1024
	defaultDirMode = 0o755
	defaultFileMode = 0o644
)

// CopyFileSystem recursively copies every regular file and directory in src
// into dst, which must be the root directory of an already-formatted
// tananfs image. Symlinks and other non-regular entries are skipped, since
// the format has no representation for them.
func CopyFileSystem(src fs.FS, fsys *tananfs.Filesystem, dst *tananfs.Directory) error {
	return copyDir(src, fsys, dst, ".")
}

func copyDir(src fs.FS, fsys *tananfs.Filesystem, dst *tananfs.Directory, dir string) error {
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if excludedPaths[name] {
			continue
		}

		p := name
		if dir != "." {
			p = path.Join(dir, name)
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		if entry.IsDir() {
			child, err := tananfs.NewDirectory(fsys, dst.Inode().Index, name, uint16(defaultDirMode))
			if err != nil {
				return fmt.Errorf("create dir %s: %w", p, err)
			}
			// NewDirectory registered the child through its own handle on
			// the parent; record it in dst too, so a later flush of dst
			// keeps the entry.
			if err := dst.AddChild(name, child.Inode().Index); err != nil {
				return fmt.Errorf("create dir %s: %w", p, err)
			}
			if err := copyDir(src, fsys, child, p); err != nil {
				child.Close()
				return fmt.Errorf("copy dir %s: %w", p, err)
			}
			child.Close()
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		if err := copyOneFile(src, fsys, dst, name, p, info); err != nil {
			return fmt.Errorf("copy file %s: %w", p, err)
		}
	}

	return nil
}

func copyOneFile(src fs.FS, fsys *tananfs.Filesystem, dst *tananfs.Directory, name, p string, info fs.FileInfo) error {
	in, err := src.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := tananfs.NewRegularFile(fsys, dst, name, uint16(defaultFileMode))
	if err != nil {
		return err
	}
	defer out.Close()

	if info.Size() <= maxCopyAllSize {
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			if err := out.Write(0, data); err != nil {
				return err
			}
		}
	} else {
		buf := make([]byte, 32*1024)
		var offset uint64
		for {
			n, rerr := in.Read(buf)
			if n > 0 {
				if err := out.Write(offset, buf[:n]); err != nil {
					return err
				}
				offset += uint64(n)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return rerr
			}
		}
	}

	out.SetAccessTime(getAccessTime(info))
	return out.Flush()
}
