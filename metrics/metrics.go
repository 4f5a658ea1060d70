package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SelectionsTotal tracks host selections by operation and outcome.
var SelectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pupsourcing_hostselect_selections_total",
		Help: "Total host selections by operation and outcome",
	},
	[]string{"topic", "operation", "outcome"},
)

// SelectionDuration tracks the latency of a host selection.
var SelectionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pupsourcing_hostselect_selection_duration_seconds",
		Help:    "Host selection latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"topic", "operation"},
)

// CursorConflictsTotal tracks rotation cursor updates lost to a concurrent writer.
var CursorConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pupsourcing_hostselect_cursor_conflicts_total",
		Help: "Total rotation cursor updates lost to a concurrent writer",
	},
	[]string{"topic"},
)

// DeadHostSkipsTotal tracks rotation slots skipped because the host was not live.
var DeadHostSkipsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pupsourcing_hostselect_dead_host_skips_total",
		Help: "Total rotation slots skipped because the host was not live",
	},
	[]string{"topic"},
)

// RotationAttempts tracks how many attempts a rotation call consumed.
var RotationAttempts = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pupsourcing_hostselect_rotation_attempts",
		Help:    "Attempts consumed per rotation call",
		Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20},
	},
	[]string{"topic"},
)

// LiveServices tracks the number of live services seen by the last selection.
var LiveServices = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "pupsourcing_hostselect_live_services",
		Help: "Live services seen by the last selection",
	},
	[]string{"topic"},
)

// HeartbeatsTotal tracks worker heartbeats by outcome.
var HeartbeatsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pupsourcing_hostselect_heartbeats_total",
		Help: "Total worker heartbeats by outcome",
	},
	[]string{"topic", "outcome"},
)

// HeartbeatLatency tracks heartbeat round-trip latency.
var HeartbeatLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pupsourcing_hostselect_heartbeat_latency_seconds",
		Help:    "Heartbeat round-trip latency",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"topic"},
)
