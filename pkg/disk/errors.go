package disk

import (
	"errors"
	"fmt"
)

var (
	ErrSegmentClosed  = errors.New("segment closed")
	ErrSegmentFull    = errors.New("segment full")
	ErrIndexMismatch  = errors.New("index mismatch")
	ErrCorruptRecord  = errors.New("corrupt record")
	ErrForeignSegment = errors.New("segment belongs to another journal")
	ErrSegmentGap     = errors.New("segments are not contiguous")
	ErrCompression    = errors.New("segments disagree on compression")
)

// IndexMismatchError is returned by Segment.Append when the index is not
// the segment's next index.
type IndexMismatchError struct {
	Expected uint64
	Actual   uint64
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf("index mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *IndexMismatchError) Unwrap() error { return ErrIndexMismatch }

// CorruptRecordError describes the first record of a segment that failed
// validation during a scan or read.
type CorruptRecordError struct {
	Segment  uint64
	Index    uint64
	Position int64
	Reason   string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record: segment=%d index=%d position=%d: %s", e.Segment, e.Index, e.Position, e.Reason)
}

func (e *CorruptRecordError) Unwrap() error { return ErrCorruptRecord }
