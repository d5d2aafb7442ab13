package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_appends_total",
			Help: "Total number of entries appended to the journal",
		},
		[]string{"journal"},
	)

	AppendedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_appended_bytes_total",
			Help: "Total payload bytes appended to the journal",
		},
		[]string{"journal"},
	)

	AppendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journal_append_latency_seconds",
			Help:    "Histogram of append latency",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"journal"},
	)

	RolloversTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_segment_rollovers_total",
			Help: "Total number of segment rollovers",
		},
		[]string{"journal"},
	)

	TruncationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_truncations_total",
			Help: "Total number of truncations and resets that discarded entries",
		},
		[]string{"journal"},
	)

	CompactedSegments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_compacted_segments_total",
			Help: "Total number of segments removed by compaction",
		},
		[]string{"journal"},
	)

	SegmentCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journal_segments",
			Help: "Current number of segments",
		},
		[]string{"journal"},
	)

	LastIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journal_last_index",
			Help: "Index of the last written entry",
		},
		[]string{"journal"},
	)

	CommitIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journal_commit_index",
			Help: "Current commit index",
		},
		[]string{"journal"},
	)

	OpenReaders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "journal_open_readers",
			Help: "Number of open readers",
		},
		[]string{"journal"},
	)
)
