//go:build !linux
// +build !linux

package disk

import "os"

func adviseSequential(f *os.File) {}

func syncFile(f *os.File) error {
	return f.Sync()
}
