//go:build linux
// +build linux

package disk

import (
	"os"

	"golang.org/x/sys/unix"
)

// Linux: sequential access hint
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// syncFile flushes file data without forcing a metadata write.
func syncFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
