package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/downfa11-org/journal/util"
)

const deletedSuffix = ".deleted"

// removeSegmentFile renames the segment to *.deleted and then unlinks it.
// Recovery never replays *.deleted files.
func removeSegmentFile(logPath string) error {
	deletedPath := logPath + deletedSuffix
	if err := os.Rename(logPath, deletedPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("mark segment deleted: %w", err)
	}
	if err := os.Remove(deletedPath); err != nil {
		return fmt.Errorf("remove segment: %w", err)
	}
	return nil
}

// purgeDeleted removes segment files left marked as deleted by an
// interrupted removal.
func purgeDeleted(dir, name string) {
	files, _ := filepath.Glob(filepath.Join(dir, name+"_segment_*.log"+deletedSuffix))
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			util.Warn("failed to purge %s: %v", f, err)
			continue
		}
		util.Debug("purged deleted segment %s", f)
	}
}

// listSegmentFiles returns the live segment files of a journal in id order.
func listSegmentFiles(dir, name string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, name+"_segment_*.log"))
	if err != nil {
		return nil, err
	}
	live := files[:0]
	for _, f := range files {
		if !strings.HasSuffix(f, deletedSuffix) {
			live = append(live, f)
		}
	}
	// ids are zero padded, so lexical order is id order
	sort.Strings(live)
	return live, nil
}

func segmentPath(dir, name string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s_segment_%020d.log", name, id))
}
