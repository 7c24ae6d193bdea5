package testhelper

import (
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/tananfs/tananfs/backend"
)

// MemStorage is an in-memory backend.Storage backed by a growable byte
// slice. It stands in for a real block device in the core package's tests,
// the same role original_source's unit tests give an in-memory cursor over
// a zero-filled vector.
type MemStorage struct {
	data []byte
	pos  int64
}

// NewMemStorage returns a MemStorage pre-sized to size zero bytes.
func NewMemStorage(size int) *MemStorage {
	return &MemStorage{data: make([]byte, size)}
}

var _ backend.Storage = (*MemStorage)(nil)

func (m *MemStorage) Stat() (fs.FileInfo, error) {
	return memFileInfo{size: int64(len(m.data))}, nil
}

func (m *MemStorage) Read(b []byte) (int, error) {
	n, err := m.ReadAt(b, m.pos)
	m.pos += int64(n)
	return n, err
}

func (m *MemStorage) Close() error { return nil }

func (m *MemStorage) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, os.ErrInvalid
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(b, m.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemStorage) WriteAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, os.ErrInvalid
	}
	end := off + int64(len(b))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[off:], b), nil
}

func (m *MemStorage) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	}
	m.pos = base + offset
	return m.pos, nil
}

// Sys has no backing *os.File; MemStorage is never suitable for ioctls.
func (m *MemStorage) Sys() (*os.File, error) { return nil, backend.ErrNotSuitable }

// Writable always succeeds: MemStorage is read-write by construction.
func (m *MemStorage) Writable() (backend.WritableFile, error) { return m, nil }

// Bytes exposes the current backing buffer, for tests that want to assert
// on raw disk content directly.
func (m *MemStorage) Bytes() []byte { return m.data }

type memFileInfo struct{ size int64 }

func (i memFileInfo) Name() string       { return "memstorage" }
func (i memFileInfo) Size() int64        { return i.size }
func (i memFileInfo) Mode() fs.FileMode  { return 0o600 }
func (i memFileInfo) ModTime() time.Time { return time.Time{} }
func (i memFileInfo) IsDir() bool        { return false }
func (i memFileInfo) Sys() any           { return nil }
