package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/journal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill appends entries from..to, rolling over whenever the active segment is full.
func fill(t *testing.T, m *SegmentManager, from, to uint64) {
	t.Helper()
	for i := from; i <= to; i++ {
		if m.Active().IsFull(10) {
			_, err := m.Rollover(i)
			require.NoError(t, err)
		}
		_, err := m.Active().Append(i, payload(i))
		require.NoError(t, err)
	}
}

const fourPerSegment = DescriptorSize + 4*(RecordOverhead+10)

func TestManagerRolloverAndLookup(t *testing.T) {
	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			m := newTestManager(t, level, fourPerSegment)
			gen := m.Generation()
			fill(t, m, 1, 10)

			require.Equal(t, 3, m.Len())
			assert.Greater(t, m.Generation(), gen)
			assert.Equal(t, uint64(1), m.FirstIndex())
			assert.Equal(t, uint64(10), m.LastIndex())

			assert.Nil(t, m.SegmentFor(0))
			assert.Equal(t, uint64(1), m.SegmentFor(4).FirstIndex())
			assert.Equal(t, uint64(5), m.SegmentFor(5).FirstIndex())
			assert.Equal(t, uint64(9), m.SegmentFor(10).FirstIndex())
			assert.Equal(t, m.Active(), m.SegmentFor(42))

			for _, seg := range m.Segments()[:2] {
				assert.True(t, seg.Sealed())
			}
			assert.False(t, m.Active().Sealed())

			for i := uint64(1); i <= 10; i++ {
				got, ok, err := m.SegmentFor(i).Read(i)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, payload(i), got)
			}
		})
	}
}

func TestManagerRolloverRejectsGap(t *testing.T) {
	m := newTestManager(t, types.StorageMemory, fourPerSegment)
	fill(t, m, 1, 2)
	_, err := m.Rollover(5)
	assert.ErrorIs(t, err, ErrSegmentGap)
}

func TestManagerTruncate(t *testing.T) {
	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			m := newTestManager(t, level, fourPerSegment)
			fill(t, m, 1, 10)

			require.NoError(t, m.Truncate(20))
			assert.Equal(t, uint64(10), m.LastIndex())

			require.NoError(t, m.Truncate(6))
			assert.Equal(t, 2, m.Len())
			assert.Equal(t, uint64(6), m.LastIndex())
			assert.False(t, m.Active().Sealed())

			// removes the segment starting at 5 and leaves a full active segment
			require.NoError(t, m.Truncate(4))
			assert.Equal(t, 1, m.Len())
			assert.Equal(t, uint64(4), m.LastIndex())

			fill(t, m, 5, 9)
			assert.Equal(t, uint64(9), m.LastIndex())

			require.NoError(t, m.Truncate(0))
			assert.Equal(t, 1, m.Len())
			assert.Equal(t, uint64(0), m.LastIndex())
			assert.True(t, m.Active().IsEmpty())
		})
	}
}

func TestManagerCompact(t *testing.T) {
	for _, level := range levels {
		t.Run(level.String(), func(t *testing.T) {
			m := newTestManager(t, level, fourPerSegment)
			fill(t, m, 1, 12)
			require.Equal(t, 3, m.Len())

			removed, err := m.Compact(4)
			require.NoError(t, err)
			assert.Equal(t, 0, removed)

			// index 5 is the base of the second segment, which must survive
			removed, err = m.Compact(5)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)
			assert.Equal(t, uint64(5), m.FirstIndex())

			// the active segment is never removed
			removed, err = m.Compact(100)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)
			assert.Equal(t, 1, m.Len())
			assert.Equal(t, uint64(9), m.FirstIndex())
			assert.Equal(t, uint64(12), m.LastIndex())
		})
	}
}

func TestManagerTruncateBelowFloor(t *testing.T) {
	m := newTestManager(t, types.StorageDisk, fourPerSegment)
	fill(t, m, 1, 12)
	_, err := m.Compact(9)
	require.NoError(t, err)

	require.NoError(t, m.Truncate(3))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, uint64(4), m.FirstIndex())
	assert.Equal(t, uint64(3), m.LastIndex())
	fill(t, m, 4, 5)
	assert.Equal(t, uint64(5), m.LastIndex())
}

func TestManagerReset(t *testing.T) {
	m := newTestManager(t, types.StorageDisk, fourPerSegment)
	fill(t, m, 1, 10)

	require.NoError(t, m.Reset(100))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, uint64(100), m.FirstIndex())
	assert.Equal(t, uint64(99), m.LastIndex())

	files, err := filepath.Glob(filepath.Join(m.Dir(), "*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestManagerPurgesDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Name: "purge", Directory: dir, Level: types.StorageDisk, MaxSegmentSize: fourPerSegment, IndexDensity: 0.5}
	jdir := filepath.Join(dir, "purge")
	require.NoError(t, os.MkdirAll(jdir, 0o755))
	stale := segmentPath(jdir, "purge", 3) + deletedSuffix
	require.NoError(t, os.WriteFile(stale, []byte("garbage"), 0o644))

	m := NewSegmentManager(opts)
	require.NoError(t, m.Open(nil))
	defer m.Close()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, segmentPath(jdir, "purge", 1))
}

func TestManagerCloseIdempotent(t *testing.T) {
	m := newTestManager(t, types.StorageMemory, fourPerSegment)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Truncate(0), ErrSegmentClosed)
}
