package disk

import (
	"math"
	"sort"

	"github.com/downfa11-org/journal/pkg/types"
)

// SparseIndex records the position of every stride-th entry of a segment.
// Entries between two samples are found by scanning forward from the
// closest preceding sample.
type SparseIndex struct {
	stride  uint64
	entries []types.IndexEntry
}

// NewSparseIndex builds an index that samples roughly density*N of N
// entries. density must be in (0,1].
func NewSparseIndex(density float64) *SparseIndex {
	stride := uint64(1)
	if density > 0 && density < 1 {
		stride = uint64(math.Ceil(1/density - 1e-9))
	}
	return &SparseIndex{stride: stride}
}

func (x *SparseIndex) Stride() uint64 { return x.stride }

func (x *SparseIndex) Len() int { return len(x.entries) }

// Index records position for index when index falls on the stride.
func (x *SparseIndex) Index(index, position uint64) bool {
	if index%x.stride != 0 {
		return false
	}
	if n := len(x.entries); n > 0 && x.entries[n-1].Index >= index {
		x.Truncate(index - 1)
	}
	x.entries = append(x.entries, types.IndexEntry{Index: index, Position: position})
	return true
}

// Lookup returns the closest sampled entry at or below index.
func (x *SparseIndex) Lookup(index uint64) (types.IndexEntry, bool) {
	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Index > index
	})
	if i == 0 {
		return types.IndexEntry{}, false
	}
	return x.entries[i-1], true
}

// Truncate drops every sample above index.
func (x *SparseIndex) Truncate(index uint64) {
	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Index > index
	})
	x.entries = x.entries[:i]
}
