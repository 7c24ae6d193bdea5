package sync

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/tananfs/tananfs/filesystem/tananfs"
	"github.com/tananfs/tananfs/util"
)

// CompareTree walks origFS and the tananfs directory tree rooted at dir,
// failing if either side has an entry the other lacks, if a directory/file
// mismatches in type, or if a regular file's contents differ.
func CompareTree(origFS fs.FS, fsys *tananfs.Filesystem, dir *tananfs.Directory) error {
	return compareDir(origFS, fsys, dir, ".")
}

func compareDir(origFS fs.FS, fsys *tananfs.Filesystem, dir *tananfs.Directory, p string) error {
	entries, err := fs.ReadDir(origFS, p)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", p, err)
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if excludedPaths[name] {
			continue
		}
		seen[name] = true

		child, ok := dir.Lookup(name)
		if !ok {
			return fmt.Errorf("path %q missing from tananfs tree", path.Join(p, name))
		}

		childPath := name
		if p != "." {
			childPath = path.Join(p, name)
		}

		loaded, err := fsys.LoadInode(child.Inode)
		if err != nil {
			return fmt.Errorf("load inode for %q: %w", childPath, err)
		}

		if entry.IsDir() {
			if loaded.Type != tananfs.TypeDirectory {
				return fmt.Errorf("type mismatch at %q: expected directory", childPath)
			}
			childDir, err := tananfs.LoadDirectory(fsys, child.Inode)
			if err != nil {
				return err
			}
			err = compareDir(origFS, fsys, childDir, childPath)
			childDir.Close()
			if err != nil {
				return err
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", childPath, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if loaded.Type != tananfs.TypeRegular {
			return fmt.Errorf("type mismatch at %q: expected regular file", childPath)
		}
		if err := compareFileContents(origFS, fsys, child.Inode, childPath, info.Size()); err != nil {
			return err
		}
	}

	for _, c := range dir.Children() {
		if !seen[c.Name] {
			return fmt.Errorf("extra path %q in tananfs tree", path.Join(p, c.Name))
		}
	}
	return nil
}

// CompareFS compares two fs.FS instances for identical structure and
// contents, independent of tananfs. It is used to sanity-check a round trip
// through a host tree (e.g. export then re-import) without touching an
// image at all.
func CompareFS(origFS, targetFS fs.FS) error {
	seen := make(map[string]struct{})

	err := fs.WalkDir(origFS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		seen[p] = struct{}{}

		td, err := fs.Stat(targetFS, p)
		if err != nil {
			return fmt.Errorf("path %q missing in target FS: %w", p, err)
		}
		if d.IsDir() != td.IsDir() {
			return fmt.Errorf("type mismatch at %q", p)
		}
		if d.IsDir() {
			return nil
		}

		od, err := d.Info()
		if err != nil {
			return err
		}
		if od.Size() != td.Size() {
			return fmt.Errorf("size mismatch at %q", p)
		}
		return compareHostFileContents(origFS, targetFS, p)
	})
	if err != nil {
		return err
	}

	return fs.WalkDir(targetFS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, ok := seen[p]; !ok {
			return fmt.Errorf("extra path %q in target FS", p)
		}
		return nil
	})
}

func compareHostFileContents(a, b fs.FS, name string) error {
	af, err := a.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = af.Close() }()

	bf, err := b.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = bf.Close() }()

	origData, err := io.ReadAll(af)
	if err != nil {
		return err
	}
	targetData, err := io.ReadAll(bf)
	if err != nil {
		return err
	}
	if !bytes.Equal(origData, targetData) {
		_, dump := util.DumpByteSlicesWithDiffs(origData, targetData, 16, true, true)
		return fmt.Errorf("content mismatch at %q:\n%s", path.Clean(name), dump)
	}
	return nil
}

func compareFileContents(origFS fs.FS, fsys *tananfs.Filesystem, inode uint64, name string, wantSize int64) error {
	rf, err := tananfs.LoadRegularFile(fsys, inode)
	if err != nil {
		return err
	}
	defer rf.Close()

	if int64(rf.Size()) != wantSize {
		return fmt.Errorf("size mismatch at %q: tananfs has %d, source has %d", name, rf.Size(), wantSize)
	}

	in, err := origFS.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	orig, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	got, err := rf.Read(0, rf.Size())
	if err != nil {
		return err
	}

	if !bytes.Equal(orig, got) {
		_, dump := util.DumpByteSlicesWithDiffs(orig, got, 16, true, true)
		return fmt.Errorf("content mismatch at %q:\n%s", name, dump)
	}
	return nil
}
