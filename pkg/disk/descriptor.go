package disk

import (
	"encoding/binary"
	"fmt"

	"github.com/downfa11-org/journal/util"
	"github.com/google/uuid"
)

const (
	DescriptorSize    = 64
	DescriptorVersion = 2

	descriptorMagic = 0x4a524e4c // "JRNL"
)

// Descriptor is the fixed header written at the start of every segment.
//
//	magic(4) version(4) id(8) index(8) maxSize(4) journalID(16) created(8) compression(1) reserved(11)
type Descriptor struct {
	Version        uint32
	ID             uint64
	Index          uint64
	MaxSegmentSize uint32
	JournalID      uuid.UUID
	Created        int64
	// Compression is the payload compression of every record in the journal.
	Compression string
}

var compressionCodes = []string{
	util.CompressionNone,
	util.CompressionGzip,
	util.CompressionSnappy,
	util.CompressionLZ4,
}

func compressionCode(name string) (byte, error) {
	if name == "" {
		name = util.CompressionNone
	}
	for i, c := range compressionCodes {
		if c == name {
			return byte(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported compression type: %s", name)
}

func (d Descriptor) MarshalBinary() ([]byte, error) {
	code, err := compressionCode(d.Compression)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, DescriptorSize)
	binary.BigEndian.PutUint32(buf[0:4], descriptorMagic)
	binary.BigEndian.PutUint32(buf[4:8], d.Version)
	binary.BigEndian.PutUint64(buf[8:16], d.ID)
	binary.BigEndian.PutUint64(buf[16:24], d.Index)
	binary.BigEndian.PutUint32(buf[24:28], d.MaxSegmentSize)
	copy(buf[28:44], d.JournalID[:])
	binary.BigEndian.PutUint64(buf[44:52], uint64(d.Created))
	buf[52] = code
	return buf, nil
}

func (d *Descriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < DescriptorSize {
		return fmt.Errorf("descriptor too short: %d bytes", len(buf))
	}
	if magic := binary.BigEndian.Uint32(buf[0:4]); magic != descriptorMagic {
		return fmt.Errorf("bad segment magic %#x", magic)
	}
	d.Version = binary.BigEndian.Uint32(buf[4:8])
	if d.Version != DescriptorVersion {
		return fmt.Errorf("unsupported segment version %d", d.Version)
	}
	d.ID = binary.BigEndian.Uint64(buf[8:16])
	d.Index = binary.BigEndian.Uint64(buf[16:24])
	d.MaxSegmentSize = binary.BigEndian.Uint32(buf[24:28])
	copy(d.JournalID[:], buf[28:44])
	d.Created = int64(binary.BigEndian.Uint64(buf[44:52]))
	if code := int(buf[52]); code < len(compressionCodes) {
		d.Compression = compressionCodes[code]
	} else {
		return fmt.Errorf("segment %d has unknown compression code %d", d.ID, code)
	}
	if d.Index == 0 {
		return fmt.Errorf("segment %d has zero base index", d.ID)
	}
	return nil
}
