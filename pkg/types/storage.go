package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StorageLevel selects the backing store of journal segments.
type StorageLevel int

const (
	StorageMemory StorageLevel = iota
	StorageDisk
	StorageMapped
)

func ParseStorageLevel(s string) (StorageLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "memory", "mem":
		return StorageMemory, nil
	case "disk", "file", "":
		return StorageDisk, nil
	case "mapped", "mmap":
		return StorageMapped, nil
	}
	return StorageDisk, fmt.Errorf("unknown storage level %q", s)
}

func (l StorageLevel) String() string {
	switch l {
	case StorageMemory:
		return "memory"
	case StorageDisk:
		return "disk"
	case StorageMapped:
		return "mapped"
	}
	return fmt.Sprintf("StorageLevel(%d)", int(l))
}

// Durable reports whether segments survive a process restart.
func (l StorageLevel) Durable() bool {
	return l == StorageDisk || l == StorageMapped
}

func (l *StorageLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("storage_level must be one of memory/disk/mapped")
	}
	parsed, err := ParseStorageLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l *StorageLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("storage_level must be one of memory/disk/mapped")
	}
	parsed, err := ParseStorageLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ReaderMode controls which entries a journal reader can observe.
type ReaderMode int

const (
	// ModeAll exposes every appended entry.
	ModeAll ReaderMode = iota
	// ModeCommits exposes only entries at or below the commit index.
	ModeCommits
)

func ParseReaderMode(s string) (ReaderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return ModeAll, nil
	case "commits", "committed":
		return ModeCommits, nil
	}
	return ModeAll, fmt.Errorf("unknown reader mode %q", s)
}

func (m ReaderMode) String() string {
	if m == ModeCommits {
		return "commits"
	}
	return "all"
}
