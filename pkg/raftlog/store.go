// Package raftlog stores a hashicorp/raft log in a segmented journal.
package raftlog

import (
	"fmt"
	"sync"

	"github.com/downfa11-org/journal/pkg/codec"
	"github.com/downfa11-org/journal/pkg/config"
	"github.com/downfa11-org/journal/pkg/journal"
	"github.com/downfa11-org/journal/util"
	"github.com/hashicorp/raft"
)

// LogStore implements raft.LogStore. Entries are msgpack encoded, the same
// encoding raft's own stores use.
//
// Prefix deletion is segment granular: entries below the requested bound may
// stay readable until their whole segment can be dropped.
type LogStore struct {
	mu      sync.Mutex
	journal *journal.Journal[*raft.Log]
}

var _ raft.LogStore = (*LogStore)(nil)

func Open(cfg *config.Config) (*LogStore, error) {
	j, err := journal.Open(cfg, codec.Msgpack[*raft.Log]())
	if err != nil {
		return nil, err
	}
	return &LogStore{journal: j}, nil
}

// Journal exposes the underlying journal, e.g. to open readers over the log.
func (s *LogStore) Journal() *journal.Journal[*raft.Log] { return s.journal }

func (s *LogStore) FirstIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first, last := s.bounds()
	if last < first {
		return 0, nil
	}
	return first, nil
}

func (s *LogStore) LastIndex() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first, last := s.bounds()
	if last < first {
		return 0, nil
	}
	return last, nil
}

func (s *LogStore) bounds() (uint64, uint64) {
	return s.journal.FirstIndex(), s.journal.Writer().LastIndex()
}

func (s *LogStore) GetLog(index uint64, log *raft.Log) error {
	entry, ok, err := s.journal.Get(index)
	if err != nil {
		return err
	}
	if !ok {
		return raft.ErrLogNotFound
	}
	*log = *entry.Entry
	return nil
}

func (s *LogStore) StoreLog(log *raft.Log) error {
	return s.StoreLogs([]*raft.Log{log})
}

// StoreLogs appends logs in order. The first log of an empty store may carry
// any index; a log below the next index replaces the conflicting tail.
func (s *LogStore) StoreLogs(logs []*raft.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.journal.Writer()
	for _, log := range logs {
		first, last := s.bounds()
		next := last + 1
		switch {
		case last < first && log.Index != next:
			if err := w.Restart(log.Index); err != nil {
				return err
			}
		case log.Index < next:
			util.Debug("raftlog: replacing entries from %d", log.Index)
			if err := w.Truncate(log.Index - 1); err != nil {
				return err
			}
		}
		if _, err := w.AppendEntry(journal.Indexed[*raft.Log]{Index: log.Index, Entry: log}); err != nil {
			return fmt.Errorf("store log %d: %w", log.Index, err)
		}
	}
	return nil
}

// DeleteRange removes [min, max], which must touch one end of the log.
func (s *LogStore) DeleteRange(min, max uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, last := s.bounds()
	if last < first || max < first || min > last {
		return nil
	}
	w := s.journal.Writer()
	switch {
	case min <= first && max >= last:
		return w.Restart(max + 1)
	case max >= last:
		return w.Truncate(min - 1)
	case min <= first:
		_, err := s.journal.Compact(max + 1)
		return err
	}
	return fmt.Errorf("raftlog: cannot delete [%d,%d] from the middle of [%d,%d]", min, max, first, last)
}

// Commit forwards the consensus commit index so committed readers advance.
func (s *LogStore) Commit(index uint64) error {
	return s.journal.Writer().Commit(index)
}

func (s *LogStore) IsMonotonic() bool { return true }

func (s *LogStore) Close() error {
	return s.journal.Close()
}
