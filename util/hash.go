package util

import "hash/crc32"

// Checksum returns the CRC32 (IEEE) of a record payload.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
