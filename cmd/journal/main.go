package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/downfa11-org/journal/pkg/codec"
	"github.com/downfa11-org/journal/pkg/config"
	"github.com/downfa11-org/journal/pkg/controller"
	"github.com/downfa11-org/journal/pkg/journal"
	"github.com/downfa11-org/journal/pkg/metrics"
	"github.com/downfa11-org/journal/util"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		util.Fatal("failed to load config: %v", err)
	}

	j, err := journal.Open(cfg, codec.String())
	if err != nil {
		util.Fatal("failed to open journal: %v", err)
	}

	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	}

	ctx := controller.NewClientContext()
	ch := controller.NewCommandHandler(j)

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			ctx.Close()
			if err := j.Close(); err != nil {
				util.Error("close journal: %v", err)
			}
		})
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		shutdown()
		os.Exit(0)
	}()

	fmt.Printf("Journal %q ready (%s, %s). Type HELP for commands.\n\n", cfg.Name, cfg.StorageLevel, cfg.Directory)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "EXIT") {
			break
		}
		fmt.Println(ch.HandleCommand(line, ctx))
	}
	shutdown()
}
