package metrics

import (
	"fmt"
	"net/http"

	"github.com/downfa11-org/journal/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	prometheus.MustRegister(AppendsTotal, AppendedBytes, AppendLatency, RolloversTotal, TruncationsTotal)
	prometheus.MustRegister(CompactedSegments, SegmentCount, LastIndex, CommitIndex, OpenReaders)
}

func StartMetricsServer(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		util.Info("prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			util.Error("failed to start metrics server: %v", err)
		}
	}()
}

// ObserveAppend records one appended entry of the given payload size.
func ObserveAppend(journal string, size int, elapsedSeconds float64, lastIndex uint64) {
	AppendsTotal.WithLabelValues(journal).Inc()
	AppendedBytes.WithLabelValues(journal).Add(float64(size))
	AppendLatency.WithLabelValues(journal).Observe(elapsedSeconds)
	LastIndex.WithLabelValues(journal).Set(float64(lastIndex))
}

// ObserveStructure publishes the segment count and last index after a
// rollover, truncation, reset or compaction.
func ObserveStructure(journal string, segments int, lastIndex uint64) {
	SegmentCount.WithLabelValues(journal).Set(float64(segments))
	LastIndex.WithLabelValues(journal).Set(float64(lastIndex))
}

func ObserveCommit(journal string, commitIndex uint64) {
	CommitIndex.WithLabelValues(journal).Set(float64(commitIndex))
}

// Forget drops every series of a closed journal.
func Forget(journal string) {
	for _, vec := range []*prometheus.CounterVec{AppendsTotal, AppendedBytes, RolloversTotal, TruncationsTotal, CompactedSegments} {
		vec.DeleteLabelValues(journal)
	}
	for _, vec := range []*prometheus.GaugeVec{SegmentCount, LastIndex, CommitIndex, OpenReaders} {
		vec.DeleteLabelValues(journal)
	}
	AppendLatency.DeleteLabelValues(journal)
}
