package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, DefaultDirectory, cfg.Directory)
	assert.Equal(t, types.StorageDisk, cfg.StorageLevel)
	assert.Equal(t, DefaultMaxSegmentSize, cfg.MaxSegmentSize)
	assert.Equal(t, DefaultIndexDensity, cfg.IndexDensity)
	assert.Equal(t, RecoveryTruncate, cfg.RecoveryPolicy)
	assert.Equal(t, util.CompressionNone, cfg.CompressionType)
	assert.Equal(t, util.LogLevelInfo, cfg.LogLevel)
	assert.False(t, cfg.EnableExporter)
	assert.Equal(t, DefaultExporterPort, cfg.ExporterPort)
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := LoadConfig([]string{
		"-name=raft", "-dir=/tmp/j", "-storage-level=mapped", "-segment-size=4096",
		"-index-density=0.2", "-flush-on-commit", "-recovery-policy=FAIL", "-compression=lz4",
	})
	require.NoError(t, err)

	assert.Equal(t, "raft", cfg.Name)
	assert.Equal(t, "/tmp/j", cfg.Directory)
	assert.Equal(t, types.StorageMapped, cfg.StorageLevel)
	assert.Equal(t, 4096, cfg.MaxSegmentSize)
	assert.Equal(t, 0.2, cfg.IndexDensity)
	assert.True(t, cfg.FlushOnCommit)
	assert.Equal(t, RecoveryFail, cfg.RecoveryPolicy)
	assert.Equal(t, util.CompressionLZ4, cfg.CompressionType)
}

func TestLoadConfigFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.yaml")
	yamlBody := `
name: from-file
storage_level: memory
max_segment_size: 8192
index_density: 0.5
log_level: warn
compression_type: snappy
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := LoadConfig([]string{"-config=" + path, "-segment-size=2048"})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, types.StorageMemory, cfg.StorageLevel)
	assert.Equal(t, 2048, cfg.MaxSegmentSize, "explicit flag wins over file")
	assert.Equal(t, 0.5, cfg.IndexDensity)
	assert.Equal(t, util.LogLevelWarn, cfg.LogLevel)
	assert.Equal(t, util.CompressionSnappy, cfg.CompressionType)
	util.SetLevel(util.LogLevelInfo)
}

func TestLoadConfigJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	body := `{"name":"json-journal","storage.level":"disk","max.segment.size":1024,"flush.on.commit":true}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig([]string{"-config=" + path})
	require.NoError(t, err)
	assert.Equal(t, "json-journal", cfg.Name)
	assert.Equal(t, types.StorageDisk, cfg.StorageLevel)
	assert.Equal(t, 1024, cfg.MaxSegmentSize)
	assert.True(t, cfg.FlushOnCommit)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("JOURNAL_NAME", "env-journal")
	t.Setenv("JOURNAL_STORAGE_LEVEL", "memory")
	t.Setenv("JOURNAL_SEGMENT_SIZE", "65536")
	t.Setenv("JOURNAL_FLUSH_ON_COMMIT", "true")
	t.Setenv("JOURNAL_EXPORTER_PORT", "9200")

	cfg, err := LoadConfig([]string{"-name=flag-journal"})
	require.NoError(t, err)
	assert.Equal(t, "env-journal", cfg.Name)
	assert.Equal(t, types.StorageMemory, cfg.StorageLevel)
	assert.Equal(t, 65536, cfg.MaxSegmentSize)
	assert.True(t, cfg.FlushOnCommit)
	assert.Equal(t, 9200, cfg.ExporterPort)
}

func TestLoadConfigRejectsBadStorageLevel(t *testing.T) {
	_, err := LoadConfig([]string{"-storage-level=tape"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{RecoveryPolicy: "panic", CompressionType: "zstd", Name: "  "}
	cfg.Normalize()

	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, RecoveryTruncate, cfg.RecoveryPolicy)
	assert.Equal(t, util.CompressionNone, cfg.CompressionType)
	assert.Equal(t, DefaultMaxSegmentSize, cfg.MaxSegmentSize)
	assert.Equal(t, DefaultIndexDensity, cfg.IndexDensity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"density above one", func(c *Config) { c.IndexDensity = 1.5 }, true},
		{"negative density", func(c *Config) { c.IndexDensity = -0.1 }, true},
		{"density of one", func(c *Config) { c.IndexDensity = 1 }, false},
		{"segment too small", func(c *Config) { c.MaxSegmentSize = 72 }, true},
		{"smallest segment", func(c *Config) { c.MaxSegmentSize = 73 }, false},
		{"name with separator", func(c *Config) { c.Name = "a/b" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSegmentOptions(t *testing.T) {
	cfg := Default()
	cfg.Name = "raft"
	cfg.CompressionType = "lz4"
	opts := cfg.SegmentOptions()
	assert.Equal(t, "raft", opts.Name)
	assert.Equal(t, cfg.Directory, opts.Directory)
	assert.Equal(t, cfg.MaxSegmentSize, opts.MaxSegmentSize)
	assert.Equal(t, cfg.IndexDensity, opts.IndexDensity)
	assert.Equal(t, "lz4", opts.Compression)
}
