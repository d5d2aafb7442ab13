package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/downfa11-org/journal/pkg/disk"
	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
)

func (cfg *Config) applyEnv() error {
	overrideEnvString(&cfg.Name, "JOURNAL_NAME")
	overrideEnvString(&cfg.Directory, "JOURNAL_DIR")
	if v := os.Getenv("JOURNAL_STORAGE_LEVEL"); v != "" {
		level, err := types.ParseStorageLevel(v)
		if err != nil {
			return fmt.Errorf("JOURNAL_STORAGE_LEVEL: %w", err)
		}
		cfg.StorageLevel = level
	}
	overrideEnvInt(&cfg.MaxSegmentSize, "JOURNAL_SEGMENT_SIZE")
	overrideEnvFloat64(&cfg.IndexDensity, "JOURNAL_INDEX_DENSITY")
	overrideEnvBool(&cfg.FlushOnCommit, "JOURNAL_FLUSH_ON_COMMIT")
	overrideEnvString(&cfg.RecoveryPolicy, "JOURNAL_RECOVERY_POLICY")
	overrideEnvString(&cfg.CompressionType, "JOURNAL_COMPRESSION")
	if v := os.Getenv("JOURNAL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = util.ParseLogLevel(v)
	}
	overrideEnvBool(&cfg.EnableExporter, "JOURNAL_EXPORTER")
	overrideEnvInt(&cfg.ExporterPort, "JOURNAL_EXPORTER_PORT")
	return nil
}

// Normalize fills unset fields with defaults and canonicalises enum-like strings.
func (cfg *Config) Normalize() {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Directory == "" {
		cfg.Directory = DefaultDirectory
	}
	if cfg.MaxSegmentSize <= 0 {
		cfg.MaxSegmentSize = DefaultMaxSegmentSize
	}
	if cfg.IndexDensity == 0 {
		cfg.IndexDensity = DefaultIndexDensity
	}

	cfg.RecoveryPolicy = strings.ToLower(strings.TrimSpace(cfg.RecoveryPolicy))
	switch cfg.RecoveryPolicy {
	case RecoveryTruncate, RecoveryFail:
	case "":
		cfg.RecoveryPolicy = RecoveryTruncate
	default:
		util.Warn("unknown recovery policy %q, using %s", cfg.RecoveryPolicy, RecoveryTruncate)
		cfg.RecoveryPolicy = RecoveryTruncate
	}

	cfg.CompressionType = strings.ToLower(strings.TrimSpace(cfg.CompressionType))
	if cfg.CompressionType == "" {
		cfg.CompressionType = util.CompressionNone
	}
	if !util.SupportedCompression(cfg.CompressionType) {
		util.Warn("unsupported compression type %q, disabling compression", cfg.CompressionType)
		cfg.CompressionType = util.CompressionNone
	}

	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = DefaultExporterPort
	}
}

// Validate rejects settings a journal cannot be opened with.
func (cfg *Config) Validate() error {
	if cfg.IndexDensity <= 0 || cfg.IndexDensity > 1 {
		return fmt.Errorf("index density %v outside (0, 1]", cfg.IndexDensity)
	}
	minSize := disk.DescriptorSize + disk.RecordOverhead + 1
	if cfg.MaxSegmentSize < minSize {
		return fmt.Errorf("max segment size %d below minimum %d", cfg.MaxSegmentSize, minSize)
	}
	if int64(cfg.MaxSegmentSize) > math.MaxUint32 {
		return fmt.Errorf("max segment size %d exceeds %d", cfg.MaxSegmentSize, uint32(math.MaxUint32))
	}
	if strings.ContainsAny(cfg.Name, `/\`) {
		return fmt.Errorf("journal name %q must not contain path separators", cfg.Name)
	}
	return nil
}

// SegmentOptions maps the configuration onto segment manager options.
func (cfg *Config) SegmentOptions() disk.Options {
	return disk.Options{
		Name:           cfg.Name,
		Directory:      cfg.Directory,
		Level:          cfg.StorageLevel,
		MaxSegmentSize: cfg.MaxSegmentSize,
		IndexDensity:   cfg.IndexDensity,
		Compression:    cfg.CompressionType,
	}
}

func overrideEnvInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseInt(v, *target)
	}
}

func overrideEnvFloat64(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseFloat(v, *target)
	}
}

func overrideEnvBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = util.ParseBool(v, *target)
	}
}

func overrideEnvString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
