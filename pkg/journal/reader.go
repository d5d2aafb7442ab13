package journal

import (
	"github.com/downfa11-org/journal/pkg/disk"
	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
)

// Reader walks a journal forward from a position of its own. A Reader must
// not be used by more than one goroutine at a time; distinct readers are
// independent.
//
// The writer repositions readers while holding the journal lock: truncation
// moves readers back to the new end and compaction moves them up to the new
// first index.
type Reader[T any] struct {
	j    *Journal[T]
	mode types.ReaderMode

	current   *Indexed[T]
	nextIndex uint64
	closed    bool

	// position of nextIndex inside seg, valid while the segment structure
	// generation is unchanged
	seg *disk.Segment
	gen uint64
	pos int64
}

func (r *Reader[T]) Mode() types.ReaderMode { return r.mode }

// Reset moves the reader back to the first retained entry.
func (r *Reader[T]) Reset() error {
	r.j.mu.RLock()
	defer r.j.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return r.resetLocked(r.j.segments.FirstIndex())
}

// ResetTo positions the reader so that Next returns index. The entry before
// index, when still readable, becomes the current entry.
func (r *Reader[T]) ResetTo(index uint64) error {
	r.j.mu.RLock()
	defer r.j.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return r.resetLocked(index)
}

func (r *Reader[T]) resetLocked(index uint64) error {
	r.nextIndex = max(index, r.j.segments.FirstIndex(), 1)
	r.seg = nil
	return r.loadCurrent()
}

// loadCurrent makes the entry before nextIndex current when this reader may
// see it.
func (r *Reader[T]) loadCurrent() error {
	r.current = nil
	prev := r.nextIndex - 1
	if !r.j.visible(prev, r.mode) {
		return nil
	}
	entry, ok, err := r.j.read(prev)
	if err != nil {
		return err
	}
	if ok {
		r.current = &entry
	}
	return nil
}

// HasNext reports whether Next would return an entry.
func (r *Reader[T]) HasNext() bool {
	r.j.mu.RLock()
	defer r.j.mu.RUnlock()
	if r.closed {
		return false
	}
	return r.j.visible(r.nextIndex, r.mode)
}

// Next returns the entry at NextIndex and advances past it. It fails with
// ErrNoSuchElement when HasNext is false.
func (r *Reader[T]) Next() (Indexed[T], error) {
	r.j.mu.RLock()
	defer r.j.mu.RUnlock()
	if r.closed {
		return Indexed[T]{}, ErrClosed
	}

	index := r.nextIndex
	if !r.j.visible(index, r.mode) {
		return Indexed[T]{}, ErrNoSuchElement
	}

	payload, err := r.readPayload(index)
	if err != nil {
		return Indexed[T]{}, err
	}
	entry, err := r.j.decode(index, payload)
	if err != nil {
		return Indexed[T]{}, err
	}
	r.current = &entry
	r.nextIndex = index + 1
	return entry, nil
}

// readPayload reads the record at index, continuing from the previous read
// position when the segment structure is unchanged.
func (r *Reader[T]) readPayload(index uint64) ([]byte, error) {
	gen := r.j.segments.Generation()
	seg := r.seg
	pos := r.pos
	if seg == nil || r.gen != gen || !seg.Contains(index) {
		seg = r.j.segments.SegmentFor(index)
		if seg == nil || !seg.Contains(index) {
			return nil, ErrNoSuchElement
		}
		var err error
		if pos, err = seg.Locate(index); err != nil {
			return nil, err
		}
	}

	payload, next, err := seg.ReadAt(index, pos)
	if err != nil {
		r.seg = nil
		return nil, err
	}
	r.seg, r.gen, r.pos = seg, gen, next
	return payload, nil
}

// CurrentEntry returns the entry most recently returned by Next, or the
// entry loaded by a reset. A closed reader has no current entry.
func (r *Reader[T]) CurrentEntry() (Indexed[T], bool) {
	r.j.mu.RLock()
	defer r.j.mu.RUnlock()
	if r.closed || r.current == nil {
		return Indexed[T]{}, false
	}
	return *r.current, true
}

// CurrentIndex is the index of the current entry, or 0 when there is none.
func (r *Reader[T]) CurrentIndex() uint64 {
	r.j.mu.RLock()
	defer r.j.mu.RUnlock()
	if r.closed || r.current == nil {
		return 0
	}
	return r.current.Index
}

// NextIndex is the index Next will return, 0 once the reader is closed.
func (r *Reader[T]) NextIndex() uint64 {
	r.j.mu.RLock()
	defer r.j.mu.RUnlock()
	if r.closed {
		return 0
	}
	return r.nextIndex
}

// Close detaches the reader from the journal. Closing twice is a no-op.
func (r *Reader[T]) Close() error {
	r.j.removeReader(r)
	return nil
}

// truncated is called by the writer after entries above index were removed.
func (r *Reader[T]) truncated(index uint64) {
	if r.nextIndex <= index+1 {
		return
	}
	if err := r.resetLocked(index + 1); err != nil {
		util.Warn("journal %s: reload reader entry after truncation to %d: %v", r.j.cfg.Name, index, err)
	}
}

// rewound is called by the writer after the journal restarted at index.
func (r *Reader[T]) rewound(index uint64) {
	r.nextIndex = index
	r.current = nil
	r.seg = nil
}

// compacted is called after segments below floor were removed.
func (r *Reader[T]) compacted(floor uint64) {
	if r.nextIndex < floor {
		r.nextIndex = floor
		r.current = nil
		r.seg = nil
		return
	}
	if r.current != nil && r.current.Index < floor {
		r.current = nil
	}
}
