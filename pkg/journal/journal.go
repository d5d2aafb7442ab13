// Package journal implements a segmented, indexed write-ahead log with a
// single writer and any number of independent readers.
package journal

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/downfa11-org/journal/pkg/codec"
	"github.com/downfa11-org/journal/pkg/config"
	"github.com/downfa11-org/journal/pkg/disk"
	"github.com/downfa11-org/journal/pkg/metrics"
	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
)

// Indexed is an entry together with the index the journal assigned to it.
// Size is the number of bytes the entry occupies in its segment record.
type Indexed[T any] struct {
	Index uint64
	Entry T
	Size  int
}

// Journal owns the segments of one named log.
//
// Writer operations hold mu exclusively; reader operations hold it shared.
// The commit index is published atomically so readers never block on it.
type Journal[T any] struct {
	cfg   *config.Config
	codec codec.Codec[T]

	mu       sync.RWMutex
	segments *disk.SegmentManager
	writer   *Writer[T]
	readers  map[*Reader[T]]struct{}
	closed   bool

	commitIndex atomic.Uint64
}

// Open loads or creates the journal described by cfg. A nil cfg opens an
// in-memory journal with default settings.
func Open[T any](cfg *config.Config, c codec.Codec[T]) (*Journal[T], error) {
	if c == nil {
		return nil, errors.New("journal codec is required")
	}
	if cfg == nil {
		cfg = config.Default()
		cfg.StorageLevel = types.StorageMemory
	} else {
		copied := *cfg
		cfg = &copied
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal config: %w", err)
	}

	segments := disk.NewSegmentManager(cfg.SegmentOptions())
	err := segments.Open(func(corrupt *disk.CorruptRecordError) error {
		if cfg.RecoveryPolicy == config.RecoveryFail {
			return corrupt
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", cfg.Name, err)
	}
	// the compression recorded in existing segments wins over the configured one
	cfg.CompressionType = segments.Compression()

	j := &Journal[T]{
		cfg:      cfg,
		codec:    c,
		segments: segments,
		readers:  make(map[*Reader[T]]struct{}),
	}
	j.writer = &Writer[T]{j: j}
	metrics.ObserveStructure(cfg.Name, segments.Len(), segments.LastIndex())
	metrics.ObserveCommit(cfg.Name, 0)
	metrics.OpenReaders.WithLabelValues(cfg.Name).Set(0)
	util.Debug("journal %s opened at level %s, indices [%d,%d]",
		cfg.Name, cfg.StorageLevel, segments.FirstIndex(), segments.LastIndex())
	return j, nil
}

func (j *Journal[T]) Name() string { return j.cfg.Name }

// Config returns the normalized configuration the journal was opened with.
func (j *Journal[T]) Config() config.Config { return *j.cfg }

// Writer returns the journal's only writer.
func (j *Journal[T]) Writer() *Writer[T] { return j.writer }

// OpenReader opens a reader positioned at index. An index below the first
// retained entry is clamped up to it.
func (j *Journal[T]) OpenReader(index uint64, mode types.ReaderMode) (*Reader[T], error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}

	r := &Reader[T]{j: j, mode: mode}
	if err := r.resetLocked(index); err != nil {
		return nil, err
	}
	j.readers[r] = struct{}{}
	metrics.OpenReaders.WithLabelValues(j.cfg.Name).Set(float64(len(j.readers)))
	return r, nil
}

// FirstIndex is the lowest retained index, 0 once the journal is closed.
func (j *Journal[T]) FirstIndex() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0
	}
	return j.segments.FirstIndex()
}

// CommitIndex is the highest index declared committed by the writer, 0 once
// the journal is closed.
func (j *Journal[T]) CommitIndex() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0
	}
	return j.commitIndex.Load()
}

// Get reads the entry at index without disturbing any reader.
func (j *Journal[T]) Get(index uint64) (Indexed[T], bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return Indexed[T]{}, false, ErrClosed
	}
	return j.read(index)
}

// Compact removes every segment lying entirely below index and moves lagging
// readers up to the new first index. It returns the number of segments removed.
func (j *Journal[T]) Compact(index uint64) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	removed, err := j.segments.Compact(index)
	if removed > 0 {
		floor := j.segments.FirstIndex()
		for r := range j.readers {
			r.compacted(floor)
		}
		metrics.CompactedSegments.WithLabelValues(j.cfg.Name).Add(float64(removed))
		metrics.ObserveStructure(j.cfg.Name, j.segments.Len(), j.segments.LastIndex())
		util.Info("journal %s compacted %d segments below %d", j.cfg.Name, removed, floor)
	}
	return removed, err
}

// Stats is a point-in-time summary of the journal.
type Stats struct {
	Name        string
	Level       types.StorageLevel
	Segments    int
	FirstIndex  uint64
	LastIndex   uint64
	CommitIndex uint64
	Readers     int
	SizeBytes   int64
}

func (j *Journal[T]) Stats() (Stats, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return Stats{}, ErrClosed
	}
	st := Stats{
		Name:        j.cfg.Name,
		Level:       j.cfg.StorageLevel,
		Segments:    j.segments.Len(),
		FirstIndex:  j.segments.FirstIndex(),
		LastIndex:   j.segments.LastIndex(),
		CommitIndex: j.commitIndex.Load(),
		Readers:     len(j.readers),
	}
	for _, seg := range j.segments.Segments() {
		st.SizeBytes += seg.Size()
	}
	return st, nil
}

// Close flushes and releases every segment. Readers and the writer fail with
// ErrClosed afterwards. Closing twice is a no-op.
func (j *Journal[T]) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	for r := range j.readers {
		r.closed = true
	}
	clear(j.readers)

	err := j.segments.Close()
	metrics.Forget(j.cfg.Name)
	if err != nil {
		return fmt.Errorf("close journal %s: %w", j.cfg.Name, err)
	}
	util.Debug("journal %s closed", j.cfg.Name)
	return nil
}

func (j *Journal[T]) encode(entry T) ([]byte, error) {
	data, err := j.codec.Encode(entry)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return util.Compress(data, j.cfg.CompressionType)
}

func (j *Journal[T]) decode(index uint64, payload []byte) (Indexed[T], error) {
	data, err := util.Decompress(payload, j.cfg.CompressionType)
	if err != nil {
		return Indexed[T]{}, fmt.Errorf("decompress entry %d: %w", index, err)
	}
	entry, err := j.codec.Decode(data)
	if err != nil {
		return Indexed[T]{}, fmt.Errorf("decode entry %d: %w", index, err)
	}
	return Indexed[T]{Index: index, Entry: entry, Size: len(payload)}, nil
}

// read looks index up from scratch. Callers hold mu.
func (j *Journal[T]) read(index uint64) (Indexed[T], bool, error) {
	seg := j.segments.SegmentFor(index)
	if seg == nil {
		return Indexed[T]{}, false, nil
	}
	payload, ok, err := seg.Read(index)
	if err != nil || !ok {
		return Indexed[T]{}, false, err
	}
	entry, err := j.decode(index, payload)
	if err != nil {
		return Indexed[T]{}, false, err
	}
	return entry, true, nil
}

// visible reports whether a reader in mode may observe index. Callers hold mu.
func (j *Journal[T]) visible(index uint64, mode types.ReaderMode) bool {
	if index == 0 || index < j.segments.FirstIndex() || index > j.segments.LastIndex() {
		return false
	}
	return mode == types.ModeAll || index <= j.commitIndex.Load()
}

func (j *Journal[T]) removeReader(r *Reader[T]) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r.closed = true
	r.current = nil
	r.seg = nil
	if _, ok := j.readers[r]; !ok {
		return
	}
	delete(j.readers, r)
	if !j.closed {
		metrics.OpenReaders.WithLabelValues(j.cfg.Name).Set(float64(len(j.readers)))
	}
}
