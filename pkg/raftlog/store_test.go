package raftlog

import (
	"fmt"
	"testing"

	"github.com/downfa11-org/journal/pkg/config"
	"github.com/downfa11-org/journal/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, level types.StorageLevel) (*LogStore, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Name = "raft"
	cfg.Directory = t.TempDir()
	cfg.StorageLevel = level
	cfg.MaxSegmentSize = 512
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, cfg
}

func makeLog(index, term uint64) *raft.Log {
	return &raft.Log{
		Index: index,
		Term:  term,
		Type:  raft.LogCommand,
		Data:  []byte(fmt.Sprintf("cmd-%d", index)),
	}
}

func makeLogs(from, to, term uint64) []*raft.Log {
	var logs []*raft.Log
	for i := from; i <= to; i++ {
		logs = append(logs, makeLog(i, term))
	}
	return logs
}

func assertLog(t *testing.T, s *LogStore, index, term uint64) {
	t.Helper()
	var got raft.Log
	require.NoError(t, s.GetLog(index, &got))
	assert.Equal(t, index, got.Index)
	assert.Equal(t, term, got.Term)
	assert.Equal(t, raft.LogCommand, got.Type)
	assert.Equal(t, []byte(fmt.Sprintf("cmd-%d", index)), got.Data)
}

func assertBounds(t *testing.T, s *LogStore, first, last uint64) {
	t.Helper()
	gotFirst, err := s.FirstIndex()
	require.NoError(t, err)
	gotLast, err := s.LastIndex()
	require.NoError(t, err)
	assert.Equal(t, first, gotFirst, "first index")
	assert.Equal(t, last, gotLast, "last index")
}

func TestEmptyStore(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	assertBounds(t, s, 0, 0)

	var log raft.Log
	assert.ErrorIs(t, s.GetLog(1, &log), raft.ErrLogNotFound)
}

func TestStoreAndGet(t *testing.T) {
	for _, level := range []types.StorageLevel{types.StorageMemory, types.StorageDisk, types.StorageMapped} {
		t.Run(level.String(), func(t *testing.T) {
			s, _ := newTestStore(t, level)
			require.NoError(t, s.StoreLog(makeLog(1, 1)))
			require.NoError(t, s.StoreLogs(makeLogs(2, 30, 1)))

			assertBounds(t, s, 1, 30)
			for i := uint64(1); i <= 30; i++ {
				assertLog(t, s, i, 1)
			}
			var log raft.Log
			assert.ErrorIs(t, s.GetLog(31, &log), raft.ErrLogNotFound)
		})
	}
}

func TestFirstLogMayStartAnywhere(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	require.NoError(t, s.StoreLogs(makeLogs(101, 105, 3)))

	assertBounds(t, s, 101, 105)
	assertLog(t, s, 103, 3)
}

func TestStoreReplacesConflictingTail(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	require.NoError(t, s.StoreLogs(makeLogs(1, 10, 1)))

	require.NoError(t, s.StoreLogs(makeLogs(7, 8, 2)))
	assertBounds(t, s, 1, 8)
	assertLog(t, s, 6, 1)
	assertLog(t, s, 7, 2)
	assertLog(t, s, 8, 2)
}

func TestStoreGapRejected(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	require.NoError(t, s.StoreLogs(makeLogs(1, 3, 1)))
	assert.Error(t, s.StoreLog(makeLog(5, 1)))
	assertBounds(t, s, 1, 3)
}

func TestDeleteSuffix(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	require.NoError(t, s.StoreLogs(makeLogs(1, 20, 1)))

	require.NoError(t, s.DeleteRange(15, 20))
	assertBounds(t, s, 1, 14)
	var log raft.Log
	assert.ErrorIs(t, s.GetLog(15, &log), raft.ErrLogNotFound)
}

func TestDeletePrefix(t *testing.T) {
	s, _ := newTestStore(t, types.StorageDisk)
	require.NoError(t, s.StoreLogs(makeLogs(1, 60, 1)))

	require.NoError(t, s.DeleteRange(1, 40))
	first, err := s.FirstIndex()
	require.NoError(t, err)
	assert.Greater(t, first, uint64(1))
	assert.LessOrEqual(t, first, uint64(41))
	assertLog(t, s, 41, 1)
	assertLog(t, s, 60, 1)
}

func TestDeleteEverything(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	require.NoError(t, s.StoreLogs(makeLogs(1, 10, 1)))
	require.NoError(t, s.Commit(10))

	require.NoError(t, s.DeleteRange(1, 10))
	assertBounds(t, s, 0, 0)

	require.NoError(t, s.StoreLog(makeLog(50, 4)))
	assertBounds(t, s, 50, 50)
	assertLog(t, s, 50, 4)
}

func TestDeleteMiddleRejected(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	require.NoError(t, s.StoreLogs(makeLogs(1, 10, 1)))
	assert.Error(t, s.DeleteRange(4, 6))
}

func TestReopen(t *testing.T) {
	s, cfg := newTestStore(t, types.StorageDisk)
	require.NoError(t, s.StoreLogs(makeLogs(1, 25, 2)))
	require.NoError(t, s.Close())

	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	assertBounds(t, s, 1, 25)
	assertLog(t, s, 25, 2)
}

func TestCommitVisibleToReaders(t *testing.T) {
	s, _ := newTestStore(t, types.StorageMemory)
	require.NoError(t, s.StoreLogs(makeLogs(1, 5, 1)))

	r, err := s.Journal().OpenReader(1, types.ModeCommits)
	require.NoError(t, err)
	assert.False(t, r.HasNext())

	require.NoError(t, s.Commit(3))
	for i := uint64(1); i <= 3; i++ {
		entry, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, i, entry.Entry.Index)
	}
	assert.False(t, r.HasNext())
}
