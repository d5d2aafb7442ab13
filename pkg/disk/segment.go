package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
)

const (
	lengthSize   = 4
	checksumSize = 4

	// RecordOverhead is the number of bytes a record adds to its payload.
	RecordOverhead = lengthSize + checksumSize
)

// The length field holds len(payload)+1 so that an empty payload can never
// be confused with the zero end marker.
func putLength(buf []byte, payloadLen int) {
	binary.BigEndian.PutUint32(buf, uint32(payloadLen)+1)
}

// readLength decodes a length field. ok is false at the end marker.
func readLength(buf []byte) (length int64, ok bool) {
	v := binary.BigEndian.Uint32(buf)
	if v == 0 {
		return 0, false
	}
	return int64(v) - 1, true
}

// Segment is a bounded run of consecutive journal entries:
//
//	[descriptor][len+1|payload|crc32][len+1|payload|crc32]...[0]
//
// A Segment is not safe for concurrent use; the owning SegmentManager's
// caller serializes mutation against reads.
type Segment struct {
	desc    Descriptor
	path    string
	store   store
	index   *SparseIndex
	maxSize int64

	count  uint64
	size   int64
	sealed bool
	closed bool
}

func newSegment(desc Descriptor, path string, st store, density float64) *Segment {
	return &Segment{
		desc:    desc,
		path:    path,
		store:   st,
		index:   NewSparseIndex(density),
		maxSize: int64(desc.MaxSegmentSize),
		size:    DescriptorSize,
	}
}

// createSegment writes a fresh descriptor into st.
func createSegment(desc Descriptor, path string, st store, density float64) (*Segment, error) {
	header, err := desc.MarshalBinary()
	if err != nil {
		return nil, err
	}
	// trailing zero length terminates the (empty) record scan
	header = append(header, 0, 0, 0, 0)
	if _, err := st.WriteAt(header, 0); err != nil {
		return nil, fmt.Errorf("write segment descriptor: %w", err)
	}
	return newSegment(desc, path, st, density), nil
}

// openSegment reads the descriptor of an existing segment file and
// replays its records to rebuild count, size and the sparse index.
// A corrupt record stops the scan; the segment is returned holding every
// record before it together with a *CorruptRecordError.
func openSegment(path string, level types.StorageLevel, density float64) (*Segment, error) {
	var (
		st  store
		err error
	)
	if level == types.StorageMapped {
		st, err = openMappedStore(path, false)
	} else {
		st, err = openFileStore(path, false)
	}
	if err != nil {
		return nil, err
	}

	buf := make([]byte, DescriptorSize)
	if _, err := st.ReadAt(buf, 0); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("read descriptor of %s: %w", path, err)
	}
	var desc Descriptor
	if err := desc.UnmarshalBinary(buf); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s := newSegment(desc, path, st, density)
	return s, s.recover()
}

func (s *Segment) recover() error {
	var lenBuf [lengthSize]byte
	index := s.desc.Index
	pos := int64(DescriptorSize)

	for {
		if pos+RecordOverhead > s.maxSize {
			break
		}
		if _, err := s.store.ReadAt(lenBuf[:], pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("scan segment %d: %w", s.desc.ID, err)
		}
		length, ok := readLength(lenBuf[:])
		if !ok {
			break
		}
		if pos+RecordOverhead+length > s.maxSize {
			return &CorruptRecordError{Segment: s.desc.ID, Index: index, Position: pos, Reason: "length exceeds segment"}
		}
		if _, _, err := s.readRecord(index, pos, pos+RecordOverhead+length); err != nil {
			var corrupt *CorruptRecordError
			if errors.As(err, &corrupt) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// a torn final write is treated like a corrupt record
				if corrupt == nil {
					corrupt = &CorruptRecordError{Segment: s.desc.ID, Index: index, Position: pos, Reason: "truncated record"}
				}
				return corrupt
			}
			return err
		}

		s.index.Index(index, uint64(pos))
		pos += RecordOverhead + length
		s.size = pos
		s.count++
		index++
	}
	util.Debug("recovered segment %d: base=%d count=%d size=%d", s.desc.ID, s.desc.Index, s.count, s.size)
	return nil
}

func (s *Segment) ID() uint64 { return s.desc.ID }

func (s *Segment) Descriptor() Descriptor { return s.desc }

func (s *Segment) Path() string { return s.path }

// FirstIndex is the segment's base index.
func (s *Segment) FirstIndex() uint64 { return s.desc.Index }

// LastIndex is the index of the last entry, or FirstIndex()-1 if empty.
func (s *Segment) LastIndex() uint64 { return s.desc.Index + s.count - 1 }

// NextIndex is the only index Append accepts.
func (s *Segment) NextIndex() uint64 { return s.desc.Index + s.count }

func (s *Segment) Count() uint64 { return s.count }

func (s *Segment) IsEmpty() bool { return s.count == 0 }

// Size is the number of occupied bytes, descriptor included.
func (s *Segment) Size() int64 { return s.size }

func (s *Segment) MaxSize() int64 { return s.maxSize }

func (s *Segment) Sealed() bool { return s.sealed }

func (s *Segment) Contains(index uint64) bool {
	return index >= s.desc.Index && index < s.desc.Index+s.count
}

// IsFull reports whether a payload of the given size no longer fits.
func (s *Segment) IsFull(payloadSize int) bool {
	return s.size+RecordOverhead+int64(payloadSize) > s.maxSize
}

// Append writes payload as entry index, which must be NextIndex().
func (s *Segment) Append(index uint64, payload []byte) (types.IndexEntry, error) {
	if s.closed {
		return types.IndexEntry{}, ErrSegmentClosed
	}
	if next := s.NextIndex(); index != next {
		return types.IndexEntry{}, &IndexMismatchError{Expected: next, Actual: index}
	}
	if s.IsFull(len(payload)) {
		return types.IndexEntry{}, ErrSegmentFull
	}

	// record followed by a zero length marker; the marker is overwritten by
	// the next append and stops a recovery scan at the true end.
	buf := make([]byte, RecordOverhead+len(payload)+lengthSize)
	putLength(buf[0:lengthSize], len(payload))
	copy(buf[lengthSize:], payload)
	binary.BigEndian.PutUint32(buf[lengthSize+len(payload):], util.Checksum(payload))

	pos := s.size
	if _, err := s.store.WriteAt(buf, pos); err != nil {
		return types.IndexEntry{}, fmt.Errorf("write record %d to segment %d: %w", index, s.desc.ID, err)
	}

	s.index.Index(index, uint64(pos))
	s.size += int64(RecordOverhead + len(payload))
	s.count++
	return types.IndexEntry{Index: index, Position: uint64(pos)}, nil
}

// Locate returns the byte position of entry index.
func (s *Segment) Locate(index uint64) (int64, error) {
	if s.closed {
		return 0, ErrSegmentClosed
	}
	if !s.Contains(index) {
		return 0, fmt.Errorf("index %d outside segment %d [%d,%d]", index, s.desc.ID, s.desc.Index, s.LastIndex())
	}

	cur, pos := s.desc.Index, int64(DescriptorSize)
	if e, ok := s.index.Lookup(index); ok {
		cur, pos = e.Index, int64(e.Position)
	}

	var lenBuf [lengthSize]byte
	for cur < index {
		if _, err := s.store.ReadAt(lenBuf[:], pos); err != nil {
			return 0, fmt.Errorf("scan segment %d at %d: %w", s.desc.ID, pos, err)
		}
		length, ok := readLength(lenBuf[:])
		if !ok {
			return 0, &CorruptRecordError{Segment: s.desc.ID, Index: cur, Position: pos, Reason: "unexpected end marker"}
		}
		pos += RecordOverhead + length
		cur++
	}
	return pos, nil
}

// ReadAt decodes the record of entry index stored at pos and returns its
// payload with the position of the following record.
func (s *Segment) ReadAt(index uint64, pos int64) ([]byte, int64, error) {
	if s.closed {
		return nil, 0, ErrSegmentClosed
	}
	if !s.Contains(index) {
		return nil, 0, fmt.Errorf("index %d outside segment %d", index, s.desc.ID)
	}
	return s.readRecord(index, pos, s.size)
}

// Read returns the payload of entry index, or false if the segment does not
// hold it.
func (s *Segment) Read(index uint64) ([]byte, bool, error) {
	if s.closed {
		return nil, false, ErrSegmentClosed
	}
	if !s.Contains(index) {
		return nil, false, nil
	}
	pos, err := s.Locate(index)
	if err != nil {
		return nil, false, err
	}
	payload, _, err := s.readRecord(index, pos, s.size)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *Segment) readRecord(index uint64, pos, limit int64) ([]byte, int64, error) {
	var lenBuf [lengthSize]byte
	if _, err := s.store.ReadAt(lenBuf[:], pos); err != nil {
		return nil, 0, err
	}
	length, ok := readLength(lenBuf[:])
	end := pos + RecordOverhead + length
	if !ok || end > limit {
		return nil, 0, &CorruptRecordError{Segment: s.desc.ID, Index: index, Position: pos, Reason: fmt.Sprintf("bad length %d", length)}
	}

	buf := make([]byte, length+checksumSize)
	if _, err := s.store.ReadAt(buf, pos+lengthSize); err != nil {
		return nil, 0, err
	}
	payload := buf[:length]
	if sum := binary.BigEndian.Uint32(buf[length:]); sum != util.Checksum(payload) {
		return nil, 0, &CorruptRecordError{Segment: s.desc.ID, Index: index, Position: pos, Reason: "checksum mismatch"}
	}
	return payload, end, nil
}

// TruncateTo discards every entry above index. Bytes past the new end are
// left in place behind a zero length marker.
func (s *Segment) TruncateTo(index uint64) error {
	if s.closed {
		return ErrSegmentClosed
	}
	if s.count == 0 || index >= s.LastIndex() {
		return nil
	}

	var end int64 = DescriptorSize
	var count uint64
	if index >= s.desc.Index {
		pos, err := s.Locate(index)
		if err != nil {
			return err
		}
		_, next, err := s.readRecord(index, pos, s.size)
		if err != nil {
			return err
		}
		end = next
		count = index - s.desc.Index + 1
		s.index.Truncate(index)
	} else {
		s.index.Truncate(0)
	}

	s.count = count
	s.size = end
	return s.markEnd()
}

// markEnd writes a zero length marker after the last valid record.
func (s *Segment) markEnd() error {
	if _, err := s.store.WriteAt([]byte{0, 0, 0, 0}, s.size); err != nil {
		return fmt.Errorf("write end marker to segment %d: %w", s.desc.ID, err)
	}
	return nil
}

// Seal marks the segment read-only for the journal writer.
func (s *Segment) Seal() error {
	if s.closed || s.sealed {
		return nil
	}
	s.sealed = true
	if err := s.store.Sync(); err != nil {
		return err
	}
	if sl, ok := s.store.(sealer); ok {
		return sl.seal()
	}
	return nil
}

// Unseal makes a sealed segment writable again after a truncation exposed
// it as the journal's active segment.
func (s *Segment) Unseal() error {
	if s.closed || !s.sealed {
		return nil
	}
	s.sealed = false
	if sl, ok := s.store.(sealer); ok {
		return sl.unseal()
	}
	return nil
}

func (s *Segment) Flush() error {
	if s.closed {
		return nil
	}
	return s.store.Sync()
}

func (s *Segment) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.store.Sync(); err != nil {
		util.Error("sync segment %d on close: %v", s.desc.ID, err)
	}
	return s.store.Close()
}

// Delete closes the segment and removes its backing storage.
func (s *Segment) Delete() error {
	s.closed = true
	return s.store.Remove()
}
