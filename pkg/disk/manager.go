package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
	"github.com/google/uuid"
)

// Options configure the segments a SegmentManager creates.
type Options struct {
	Name           string
	Directory      string
	Level          types.StorageLevel
	MaxSegmentSize int
	IndexDensity   float64
	// Compression is recorded in new segments. Existing segments keep the
	// compression they were written with.
	Compression string
}

// CorruptionHandler decides what happens to a journal when recovery finds
// a corrupt record. Returning nil truncates the journal before the record;
// returning an error aborts Open with it.
type CorruptionHandler func(*CorruptRecordError) error

// SegmentManager owns the ordered, contiguous list of segments composing a
// journal. The last segment is the active one and the only one appended to.
//
// SegmentManager does no locking of its own: the journal serializes every
// mutating call against concurrent readers. Generation is safe to read at
// any time.
type SegmentManager struct {
	opts        Options
	dir         string
	journalID   uuid.UUID
	compression string

	segments []*Segment
	nextID   uint64

	generation atomic.Uint64
	closed     bool
}

func NewSegmentManager(opts Options) *SegmentManager {
	compression := opts.Compression
	if compression == "" {
		compression = util.CompressionNone
	}
	return &SegmentManager{
		opts:        opts,
		dir:         filepath.Join(opts.Directory, opts.Name),
		compression: compression,
		nextID:      1,
	}
}

// Open loads existing segments for durable storage levels, or creates the
// first segment at index 1.
func (m *SegmentManager) Open(onCorrupt CorruptionHandler) error {
	if !m.opts.Level.Durable() {
		m.journalID = uuid.New()
		_, err := m.appendSegment(1)
		return err
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory %s: %w", m.dir, err)
	}
	purgeDeleted(m.dir, m.opts.Name)

	if err := m.load(onCorrupt); err != nil {
		m.closeSegments()
		return err
	}
	if len(m.segments) == 0 {
		m.journalID = uuid.New()
		if _, err := m.appendSegment(1); err != nil {
			return err
		}
		util.Info("created journal %s (%s) in %s", m.opts.Name, m.journalID, m.dir)
	}
	return nil
}

func (m *SegmentManager) load(onCorrupt CorruptionHandler) error {
	files, err := listSegmentFiles(m.dir, m.opts.Name)
	if err != nil {
		return err
	}

	for i, path := range files {
		seg, err := openSegment(path, m.opts.Level, m.opts.IndexDensity)
		var corrupt *CorruptRecordError
		if err != nil && !errors.As(err, &corrupt) {
			if seg != nil {
				_ = seg.Close()
			}
			return err
		}

		if len(m.segments) == 0 {
			m.journalID = seg.desc.JournalID
			if seg.desc.Compression != m.compression {
				util.Warn("journal %s was written with compression %s, ignoring configured %s",
					m.opts.Name, seg.desc.Compression, m.compression)
				m.compression = seg.desc.Compression
			}
		} else if seg.desc.JournalID != m.journalID {
			_ = seg.Close()
			return fmt.Errorf("%s: %w", path, ErrForeignSegment)
		} else if seg.desc.Compression != m.compression {
			_ = seg.Close()
			return fmt.Errorf("%w: segment %d uses %s, journal uses %s", ErrCompression, seg.ID(), seg.desc.Compression, m.compression)
		} else if prev := m.Active(); seg.FirstIndex() != prev.NextIndex() {
			_ = seg.Close()
			return fmt.Errorf("%w: segment %d starts at %d, expected %d", ErrSegmentGap, seg.ID(), seg.FirstIndex(), prev.NextIndex())
		}
		m.segments = append(m.segments, seg)
		m.nextID = seg.ID() + 1

		if corrupt != nil {
			if onCorrupt != nil {
				if herr := onCorrupt(corrupt); herr != nil {
					return herr
				}
			}
			util.Warn("journal %s: discarding entries from %d: %v", m.opts.Name, corrupt.Index, corrupt)
			if err := seg.markEnd(); err != nil {
				return err
			}
			for _, stale := range files[i+1:] {
				if err := removeSegmentFile(stale); err != nil {
					return err
				}
			}
			break
		}
	}

	for _, seg := range m.segments[:max(len(m.segments)-1, 0)] {
		if err := seg.Seal(); err != nil {
			return err
		}
	}
	if n := len(m.segments); n > 0 {
		util.Info("opened journal %s (%s): %d segments, indices [%d,%d]",
			m.opts.Name, m.journalID, n, m.FirstIndex(), m.LastIndex())
	}
	return nil
}

func (m *SegmentManager) appendSegment(base uint64) (*Segment, error) {
	desc := Descriptor{
		Version:        DescriptorVersion,
		ID:             m.nextID,
		Index:          base,
		MaxSegmentSize: uint32(m.opts.MaxSegmentSize),
		JournalID:      m.journalID,
		Created:        time.Now().UnixNano(),
		Compression:    m.compression,
	}

	var (
		st   store
		path string
		err  error
	)
	switch m.opts.Level {
	case types.StorageMemory:
		st = newMemoryStore(min(m.opts.MaxSegmentSize, 1<<20))
	case types.StorageMapped:
		path = segmentPath(m.dir, m.opts.Name, desc.ID)
		st, err = openMappedStore(path, true)
	default:
		path = segmentPath(m.dir, m.opts.Name, desc.ID)
		st, err = openFileStore(path, true)
	}
	if err != nil {
		return nil, fmt.Errorf("create segment %d: %w", desc.ID, err)
	}

	seg, err := createSegment(desc, path, st, m.opts.IndexDensity)
	if err != nil {
		_ = st.Remove()
		return nil, err
	}
	m.nextID++
	m.segments = append(m.segments, seg)
	util.Debug("journal %s: created segment %d at index %d", m.opts.Name, desc.ID, base)
	return seg, nil
}

func (m *SegmentManager) JournalID() uuid.UUID { return m.journalID }

func (m *SegmentManager) Dir() string { return m.dir }

// Compression is the payload compression recorded in the journal's segments.
func (m *SegmentManager) Compression() string { return m.compression }

// Generation changes whenever the segment structure changes: on rollover,
// truncation, compaction and reset.
func (m *SegmentManager) Generation() uint64 { return m.generation.Load() }

func (m *SegmentManager) Len() int { return len(m.segments) }

// Segments returns a copy of the current segment list.
func (m *SegmentManager) Segments() []*Segment {
	out := make([]*Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

func (m *SegmentManager) First() *Segment {
	if len(m.segments) == 0 {
		return nil
	}
	return m.segments[0]
}

// Active returns the last segment.
func (m *SegmentManager) Active() *Segment {
	if len(m.segments) == 0 {
		return nil
	}
	return m.segments[len(m.segments)-1]
}

// FirstIndex is the lowest retained index.
func (m *SegmentManager) FirstIndex() uint64 {
	if first := m.First(); first != nil {
		return first.FirstIndex()
	}
	return 0
}

// LastIndex is the highest written index, or FirstIndex()-1 when nothing
// is retained.
func (m *SegmentManager) LastIndex() uint64 {
	if active := m.Active(); active != nil {
		return active.LastIndex()
	}
	return 0
}

// SegmentFor returns the rightmost segment whose base is at or below index,
// or nil if index precedes the first segment.
func (m *SegmentManager) SegmentFor(index uint64) *Segment {
	i := sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].FirstIndex() > index
	})
	if i == 0 {
		return nil
	}
	return m.segments[i-1]
}

// Rollover seals the active segment and starts a new one at nextBase, which
// must continue the active segment.
func (m *SegmentManager) Rollover(nextBase uint64) (*Segment, error) {
	if m.closed {
		return nil, ErrSegmentClosed
	}
	active := m.Active()
	if active != nil && nextBase != active.NextIndex() {
		return nil, fmt.Errorf("%w: rollover to %d after segment ending at %d", ErrSegmentGap, nextBase, active.LastIndex())
	}
	if active != nil {
		if err := active.Seal(); err != nil {
			return nil, fmt.Errorf("seal segment %d: %w", active.ID(), err)
		}
	}
	seg, err := m.appendSegment(nextBase)
	if err != nil {
		return nil, err
	}
	m.generation.Add(1)
	return seg, nil
}

// Truncate discards every entry above index. Segments starting above index
// are deleted (the first segment is always kept) and the segment holding
// index becomes active. Truncating below the first retained entry replaces
// the whole sequence with an empty segment at index+1.
func (m *SegmentManager) Truncate(index uint64) error {
	if m.closed {
		return ErrSegmentClosed
	}
	if index >= m.LastIndex() {
		return nil
	}
	if index+1 < m.FirstIndex() {
		return m.Reset(index + 1)
	}

	for len(m.segments) > 1 && m.Active().FirstIndex() > index {
		last := m.Active()
		m.segments = m.segments[:len(m.segments)-1]
		if err := last.Delete(); err != nil {
			return fmt.Errorf("delete segment %d: %w", last.ID(), err)
		}
		util.Debug("journal %s: truncate removed segment %d", m.opts.Name, last.ID())
	}

	active := m.Active()
	if err := active.Unseal(); err != nil {
		return err
	}
	if err := active.TruncateTo(index); err != nil {
		return err
	}
	m.generation.Add(1)
	return nil
}

// Compact deletes every segment lying entirely below index. The segment
// containing index and the active segment are never removed.
func (m *SegmentManager) Compact(index uint64) (int, error) {
	if m.closed {
		return 0, ErrSegmentClosed
	}
	removed := 0
	for len(m.segments) > 1 && m.segments[1].FirstIndex() <= index {
		seg := m.segments[0]
		m.segments = m.segments[1:]
		if err := seg.Delete(); err != nil {
			return removed, fmt.Errorf("delete segment %d: %w", seg.ID(), err)
		}
		removed++
	}
	if removed > 0 {
		m.generation.Add(1)
		util.Debug("journal %s: compacted %d segments, first index now %d", m.opts.Name, removed, m.FirstIndex())
	}
	return removed, nil
}

// Reset deletes every segment and starts an empty active segment at index.
func (m *SegmentManager) Reset(index uint64) error {
	if m.closed {
		return ErrSegmentClosed
	}
	for _, seg := range m.segments {
		if err := seg.Delete(); err != nil {
			return fmt.Errorf("delete segment %d: %w", seg.ID(), err)
		}
	}
	m.segments = m.segments[:0]
	if _, err := m.appendSegment(index); err != nil {
		return err
	}
	m.generation.Add(1)
	return nil
}

// Flush syncs the active segment.
func (m *SegmentManager) Flush() error {
	if active := m.Active(); active != nil && !m.closed {
		return active.Flush()
	}
	return nil
}

// Close releases every segment. Calling it again is a no-op.
func (m *SegmentManager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.closeSegments()
}

func (m *SegmentManager) closeSegments() error {
	var errs []error
	for _, seg := range m.segments {
		if err := seg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close segments: %w", errors.Join(errs...))
	}
	return nil
}
