package types

const (
	IndexEntrySize = 16 // index(8) + position(8)
)

// IndexEntry maps a journal index to the byte position of its record
// inside a segment.
type IndexEntry struct {
	Index    uint64
	Position uint64
}
