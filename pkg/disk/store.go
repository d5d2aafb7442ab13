package disk

import (
	"fmt"
	"io"
	"os"

	"github.com/downfa11-org/journal/util"
	"golang.org/x/exp/mmap"
)

// store is the byte region backing a single segment.
type store interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
	Remove() error
}

// sealer is implemented by stores that change their read path once a
// segment stops receiving appends.
type sealer interface {
	seal() error
	unseal() error
}

type memoryStore struct {
	buf []byte
}

func newMemoryStore(capacity int) *memoryStore {
	return &memoryStore{buf: make([]byte, 0, capacity)}
}

func (m *memoryStore) ReadAt(p []byte, off int64) (int, error) {
	if m.buf == nil {
		return 0, ErrSegmentClosed
	}
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memoryStore) WriteAt(p []byte, off int64) (int, error) {
	if m.buf == nil {
		return 0, ErrSegmentClosed
	}
	end := int(off) + len(p)
	if end > cap(m.buf) {
		grown := make([]byte, len(m.buf), max(2*cap(m.buf), end))
		copy(grown, m.buf)
		m.buf = grown
	}
	if end > len(m.buf) {
		m.buf = m.buf[:end]
	}
	return copy(m.buf[off:], p), nil
}

func (m *memoryStore) Sync() error { return nil }

func (m *memoryStore) Close() error {
	m.buf = nil
	return nil
}

func (m *memoryStore) Remove() error { return m.Close() }

type fileStore struct {
	path string
	file *os.File
}

func openFileStore(path string, create bool) (*fileStore, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	adviseSequential(f)
	return &fileStore{path: path, file: f}, nil
}

func (s *fileStore) ReadAt(p []byte, off int64) (int, error) {
	if s.file == nil {
		return 0, ErrSegmentClosed
	}
	return s.file.ReadAt(p, off)
}

func (s *fileStore) WriteAt(p []byte, off int64) (int, error) {
	if s.file == nil {
		return 0, ErrSegmentClosed
	}
	return s.file.WriteAt(p, off)
}

func (s *fileStore) Sync() error {
	if s.file == nil {
		return nil
	}
	return syncFile(s.file)
}

func (s *fileStore) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) Remove() error {
	if err := s.Close(); err != nil {
		util.Warn("close before remove %s: %v", s.path, err)
	}
	return removeSegmentFile(s.path)
}

// mappedStore serves reads of a sealed segment from a read-only mapping.
type mappedStore struct {
	*fileStore
	mapping *mmap.ReaderAt
}

func openMappedStore(path string, create bool) (*mappedStore, error) {
	fs, err := openFileStore(path, create)
	if err != nil {
		return nil, err
	}
	return &mappedStore{fileStore: fs}, nil
}

func (s *mappedStore) ReadAt(p []byte, off int64) (int, error) {
	if s.mapping != nil && off+int64(len(p)) <= int64(s.mapping.Len()) {
		return s.mapping.ReadAt(p, off)
	}
	return s.fileStore.ReadAt(p, off)
}

func (s *mappedStore) seal() error {
	if s.mapping != nil {
		return nil
	}
	if err := s.fileStore.Sync(); err != nil {
		return fmt.Errorf("sync before mapping: %w", err)
	}
	mapping, err := mmap.Open(s.path)
	if err != nil {
		return fmt.Errorf("mmap open failed: %w", err)
	}
	s.mapping = mapping
	return nil
}

func (s *mappedStore) unseal() error {
	if s.mapping == nil {
		return nil
	}
	err := s.mapping.Close()
	s.mapping = nil
	return err
}

func (s *mappedStore) Close() error {
	if err := s.unseal(); err != nil {
		util.Error("failed to close mapping of %s: %v", s.path, err)
	}
	return s.fileStore.Close()
}

func (s *mappedStore) Remove() error {
	if err := s.unseal(); err != nil {
		util.Error("failed to close mapping of %s: %v", s.path, err)
	}
	return s.fileStore.Remove()
}
