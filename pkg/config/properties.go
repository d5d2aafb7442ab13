package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
	"gopkg.in/yaml.v3"
)

const (
	RecoveryTruncate = "truncate"
	RecoveryFail     = "fail"

	DefaultName           = "journal"
	DefaultDirectory      = "journal-data"
	DefaultMaxSegmentSize = 32 * 1024 * 1024
	DefaultIndexDensity   = 0.005
	DefaultExporterPort   = 9100
)

// Config describes a single journal instance.
type Config struct {
	Name           string             `yaml:"name" json:"name"`
	Directory      string             `yaml:"directory" json:"directory"`
	StorageLevel   types.StorageLevel `yaml:"storage_level" json:"storage.level"`
	MaxSegmentSize int                `yaml:"max_segment_size" json:"max.segment.size"`
	IndexDensity   float64            `yaml:"index_density" json:"index.density"`

	// Durability & recovery
	FlushOnCommit  bool   `yaml:"flush_on_commit" json:"flush.on.commit"`
	RecoveryPolicy string `yaml:"recovery_policy" json:"recovery.policy"`

	// Payload compression applied on top of the entry codec
	CompressionType string `yaml:"compression_type" json:"compression.type"`

	// Observability
	LogLevel       util.LogLevel `yaml:"log_level" json:"log.level"`
	EnableExporter bool          `yaml:"enable_exporter" json:"enable.exporter"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter.port"`
}

// Default returns a normalized configuration with every default applied.
func Default() *Config {
	cfg := &Config{StorageLevel: types.StorageDisk, LogLevel: util.LogLevelInfo}
	cfg.Normalize()
	return cfg
}

// LoadConfig builds a Config from flag defaults, an optional YAML/JSON file
// (-config or CONFIG_PATH), explicitly set flags and JOURNAL_* environment
// variables, in that order of precedence.
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	name := fs.String("name", DefaultName, "Journal name")
	dir := fs.String("dir", DefaultDirectory, "Directory holding journal segments")
	level := fs.String("storage-level", "disk", "Storage level (memory, disk, mapped)")
	segmentSize := fs.Int("segment-size", DefaultMaxSegmentSize, "Maximum segment size in bytes")
	density := fs.Float64("index-density", DefaultIndexDensity, "Fraction of entries recorded in the sparse index (0,1]")
	flushOnCommit := fs.Bool("flush-on-commit", false, "Sync the active segment on every commit")
	recovery := fs.String("recovery-policy", RecoveryTruncate, "Action on a corrupt record at open (truncate, fail)")
	compression := fs.String("compression", util.CompressionNone, "Payload compression (none, gzip, snappy, lz4)")
	logLevel := fs.String("log-level", "info", "Log Level (debug, info, warn, error)")
	exporter := fs.Bool("exporter", false, "Enable Prometheus exporter")
	exporterPort := fs.Int("exporter-port", DefaultExporterPort, "Exporter port")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" && *configPath == "" {
		*configPath = envPath
	}

	storageLevel, err := types.ParseStorageLevel(*level)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Name:            *name,
		Directory:       *dir,
		StorageLevel:    storageLevel,
		MaxSegmentSize:  *segmentSize,
		IndexDensity:    *density,
		FlushOnCommit:   *flushOnCommit,
		RecoveryPolicy:  *recovery,
		CompressionType: *compression,
		LogLevel:        util.ParseLogLevel(*logLevel),
		EnableExporter:  *exporter,
		ExporterPort:    *exporterPort,
	}

	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	// explicitly set flags win over the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			cfg.Name = *name
		case "dir":
			cfg.Directory = *dir
		case "storage-level":
			cfg.StorageLevel = storageLevel
		case "segment-size":
			cfg.MaxSegmentSize = *segmentSize
		case "index-density":
			cfg.IndexDensity = *density
		case "flush-on-commit":
			cfg.FlushOnCommit = *flushOnCommit
		case "recovery-policy":
			cfg.RecoveryPolicy = *recovery
		case "compression":
			cfg.CompressionType = *compression
		case "log-level":
			cfg.LogLevel = util.ParseLogLevel(*logLevel)
		case "exporter":
			cfg.EnableExporter = *exporter
		case "exporter-port":
			cfg.ExporterPort = *exporterPort
		}
	})

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
