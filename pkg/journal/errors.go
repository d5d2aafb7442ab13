package journal

import (
	"errors"
	"fmt"

	"github.com/downfa11-org/journal/pkg/disk"
)

var (
	ErrClosed              = errors.New("journal closed")
	ErrNoSuchElement       = errors.New("no such element")
	ErrCommittedTruncation = errors.New("cannot discard committed entries")
	ErrEntryTooLarge       = errors.New("entry exceeds segment capacity")
)

// SequenceError is returned when an entry is appended with an explicit index
// other than the writer's next index.
type SequenceError struct {
	Expected uint64
	Actual   uint64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("out of sequence append: expected index %d, got %d", e.Expected, e.Actual)
}

func (e *SequenceError) Unwrap() error { return disk.ErrIndexMismatch }
