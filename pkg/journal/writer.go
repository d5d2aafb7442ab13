package journal

import (
	"fmt"
	"time"

	"github.com/downfa11-org/journal/pkg/disk"
	"github.com/downfa11-org/journal/pkg/metrics"
	"github.com/downfa11-org/journal/util"
)

// Writer is the single mutating handle of a journal. Its methods are safe
// for concurrent use and are serialized against every reader.
type Writer[T any] struct {
	j *Journal[T]

	last *Indexed[T]
}

// Append writes entry at the next index.
func (w *Writer[T]) Append(entry T) (Indexed[T], error) {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	if w.j.closed {
		return Indexed[T]{}, ErrClosed
	}
	return w.append(w.j.segments.Active().NextIndex(), entry)
}

// AppendEntry writes an entry that already carries its index, as replicated
// from another log. The index must equal NextIndex.
func (w *Writer[T]) AppendEntry(entry Indexed[T]) (Indexed[T], error) {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	if w.j.closed {
		return Indexed[T]{}, ErrClosed
	}
	if next := w.j.segments.Active().NextIndex(); entry.Index != next {
		return Indexed[T]{}, &SequenceError{Expected: next, Actual: entry.Index}
	}
	return w.append(entry.Index, entry.Entry)
}

func (w *Writer[T]) append(index uint64, entry T) (Indexed[T], error) {
	start := time.Now()
	j := w.j

	payload, err := j.encode(entry)
	if err != nil {
		return Indexed[T]{}, err
	}
	if int64(disk.DescriptorSize+disk.RecordOverhead+len(payload)) > int64(j.cfg.MaxSegmentSize) {
		return Indexed[T]{}, fmt.Errorf("%w: %d bytes, segment size %d", ErrEntryTooLarge, len(payload), j.cfg.MaxSegmentSize)
	}

	active := j.segments.Active()
	if active.IsFull(len(payload)) {
		if active, err = j.segments.Rollover(index); err != nil {
			return Indexed[T]{}, fmt.Errorf("rollover at index %d: %w", index, err)
		}
		metrics.RolloversTotal.WithLabelValues(j.cfg.Name).Inc()
		metrics.SegmentCount.WithLabelValues(j.cfg.Name).Set(float64(j.segments.Len()))
		util.Debug("journal %s rolled over to segment %d at index %d", j.cfg.Name, active.ID(), index)
	}

	if _, err := active.Append(index, payload); err != nil {
		return Indexed[T]{}, fmt.Errorf("append index %d: %w", index, err)
	}

	indexed := Indexed[T]{Index: index, Entry: entry, Size: len(payload)}
	w.last = &indexed
	metrics.ObserveAppend(j.cfg.Name, len(payload), time.Since(start).Seconds(), index)
	return indexed, nil
}

// LastEntry returns the most recently written entry, or false when the
// journal holds no entries.
func (w *Writer[T]) LastEntry() (Indexed[T], bool, error) {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	if w.j.closed {
		return Indexed[T]{}, false, ErrClosed
	}
	if w.last != nil {
		return *w.last, true, nil
	}

	last := w.j.segments.LastIndex()
	if last == 0 || last < w.j.segments.FirstIndex() {
		return Indexed[T]{}, false, nil
	}
	entry, ok, err := w.j.read(last)
	if err != nil || !ok {
		return Indexed[T]{}, false, err
	}
	w.last = &entry
	return entry, true, nil
}

// LastIndex is the index of the last written entry, 0 for a fresh journal
// and once the journal is closed.
func (w *Writer[T]) LastIndex() uint64 {
	w.j.mu.RLock()
	defer w.j.mu.RUnlock()
	if w.j.closed {
		return 0
	}
	return w.j.segments.LastIndex()
}

// NextIndex is the index the next Append will assign, 0 once the journal is
// closed.
func (w *Writer[T]) NextIndex() uint64 {
	w.j.mu.RLock()
	defer w.j.mu.RUnlock()
	if w.j.closed {
		return 0
	}
	return w.j.segments.LastIndex() + 1
}

// Commit raises the commit index to index. Lower values are ignored.
func (w *Writer[T]) Commit(index uint64) error {
	j := w.j
	j.mu.RLock()
	closed := j.closed
	j.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	for {
		cur := j.commitIndex.Load()
		if index <= cur {
			return nil
		}
		if j.commitIndex.CompareAndSwap(cur, index) {
			break
		}
	}
	metrics.ObserveCommit(j.cfg.Name, index)

	if j.cfg.FlushOnCommit {
		return w.Flush()
	}
	return nil
}

// Truncate discards every entry above index. Readers positioned past the
// new end are moved back to index+1.
func (w *Writer[T]) Truncate(index uint64) error {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	if w.j.closed {
		return ErrClosed
	}
	return w.truncate(index)
}

func (w *Writer[T]) truncate(index uint64) error {
	j := w.j
	last := j.segments.LastIndex()
	if index >= last {
		return nil
	}
	if commit := j.commitIndex.Load(); index < commit {
		return fmt.Errorf("%w: truncate to %d below commit index %d", ErrCommittedTruncation, index, commit)
	}

	if err := j.segments.Truncate(index); err != nil {
		return fmt.Errorf("truncate to %d: %w", index, err)
	}
	w.last = nil
	for r := range j.readers {
		r.truncated(index)
	}
	metrics.TruncationsTotal.WithLabelValues(j.cfg.Name).Inc()
	metrics.ObserveStructure(j.cfg.Name, j.segments.Len(), j.segments.LastIndex())
	util.Debug("journal %s truncated from %d to %d", j.cfg.Name, last, index)
	return nil
}

// Reset makes index the next index to be written. Inside the retained range
// it discards index and everything after it. Outside that range it behaves
// like Restart.
func (w *Writer[T]) Reset(index uint64) error {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	if w.j.closed {
		return ErrClosed
	}
	index = max(index, 1)

	first, last := w.j.segments.FirstIndex(), w.j.segments.LastIndex()
	if index >= first && index <= last+1 {
		return w.truncate(index - 1)
	}
	return w.restart(index)
}

// Restart discards every entry and continues the journal, empty, at index.
// This is how a follower installs a snapshot covering everything below index.
func (w *Writer[T]) Restart(index uint64) error {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	if w.j.closed {
		return ErrClosed
	}
	return w.restart(max(index, 1))
}

func (w *Writer[T]) restart(index uint64) error {
	j := w.j
	last := j.segments.LastIndex()
	if commit := j.commitIndex.Load(); commit >= index && last >= index {
		return fmt.Errorf("%w: restart at %d below commit index %d", ErrCommittedTruncation, index, commit)
	}
	if err := j.segments.Reset(index); err != nil {
		return fmt.Errorf("restart at %d: %w", index, err)
	}
	w.last = nil
	for r := range j.readers {
		r.rewound(index)
	}
	metrics.TruncationsTotal.WithLabelValues(j.cfg.Name).Inc()
	metrics.ObserveStructure(j.cfg.Name, j.segments.Len(), j.segments.LastIndex())
	util.Info("journal %s restarted at index %d", j.cfg.Name, index)
	return nil
}

// Flush syncs the active segment to durable storage.
func (w *Writer[T]) Flush() error {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	if w.j.closed {
		return ErrClosed
	}
	return w.j.segments.Flush()
}
