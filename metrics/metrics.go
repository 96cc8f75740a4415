// Package metrics exposes the simulator's Prometheus instrumentation
// (ambient/domain stack addition): one private registry per run, labeled
// by run UUID and TCP variant, gathered either via an optional HTTP
// endpoint or once directly at the end of the run. The textual utilization
// report is computed from the sender's state, not from these metrics.
// Grounded on the teacher-adjacent pack's exporter
// examples rather than any part of the teacher itself, which ships no
// metrics layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry wraps a private prometheus.Registry plus the gauges/counters
// one simulator run exercises.
type Registry struct {
	reg *prometheus.Registry

	CongWindow       prometheus.Gauge
	SSThresh         prometheus.Gauge
	FlightSize       prometheus.Gauge
	RTOInterval      prometheus.Gauge
	RouterDrops      prometheus.Counter
	SegmentsRetransmitted prometheus.Counter
}

// New builds a Registry with every metric labeled by runID and variant.
func New(runID, variant string) *Registry {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"run_id": runID, "variant": variant}

	r := &Registry{
		reg: reg,
		CongWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "cong_window_bytes",
			Help:        "Current TCP congestion window, in bytes.",
			ConstLabels: labels,
		}),
		SSThresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ss_thresh_bytes",
			Help:        "Current slow-start threshold, in bytes.",
			ConstLabels: labels,
		}),
		FlightSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "flight_size_bytes",
			Help:        "Bytes currently in flight (sent but unacknowledged).",
			ConstLabels: labels,
		}),
		RTOInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "rto_interval_ticks",
			Help:        "Current backed-off RTO interval, in ticks.",
			ConstLabels: labels,
		}),
		RouterDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "router_drops_total",
			Help:        "Total segments dropped by the router's drop-tail queue.",
			ConstLabels: labels,
		}),
		SegmentsRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "segments_retransmitted_total",
			Help:        "Total segment retransmissions (fast-retransmit, partial-ACK, and RTO).",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(r.CongWindow, r.SSThresh, r.FlightSize, r.RTOInterval, r.RouterDrops, r.SegmentsRetransmitted)
	return r
}

// Gatherer exposes the underlying registry for promhttp.HandlerFor.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Snapshot gathers the current metric families, for the end-of-run path
// of a run that never starts an HTTP server.
func (r *Registry) Snapshot() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
