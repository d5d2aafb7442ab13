package main

import (
	"flag"
	"os"

	"github.com/downfa11-org/journal/pkg/bench"
	"github.com/downfa11-org/journal/pkg/codec"
	"github.com/downfa11-org/journal/pkg/config"
	"github.com/downfa11-org/journal/pkg/journal"
	"github.com/downfa11-org/journal/util"
)

// usage: bench [-entries=N -size=N -readers=N -commit-every=N] [-- journal flags]
func main() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	entries := fs.Int("entries", 100000, "Number of entries to append")
	size := fs.Int("size", 128, "Entry payload size in bytes")
	readers := fs.Int("readers", 1, "Number of concurrent readers")
	commitEvery := fs.Int("commit-every", 0, "Commit after every N appends (0 reads uncommitted entries)")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(fs.Args())
	if err != nil {
		util.Fatal("failed to load config: %v", err)
	}

	j, err := journal.Open(cfg, codec.Bytes())
	if err != nil {
		util.Fatal("failed to open journal: %v", err)
	}
	defer j.Close()

	res, err := bench.NewBenchmarkRunner(j, *entries, *size, *readers, *commitEvery).Run()
	if err != nil {
		util.Error("benchmark failed: %v", err)
		return
	}
	bench.Report(os.Stdout, cfg.StorageLevel, res)
}
