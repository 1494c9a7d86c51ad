// Package observability exposes pipeline counters for batch runs.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fitmerge"

// Metrics holds the pipeline counters on a private registry so that
// concurrent runs and tests do not share state.
type Metrics struct {
	registry *prometheus.Registry

	recordsLoaded        *prometheus.CounterVec
	loadDiagnostics      *prometheus.CounterVec
	recordsMerged        *prometheus.CounterVec
	duplicatesDropped    *prometheus.CounterVec
	unparsableTimestamps *prometheus.CounterVec
	runs                 *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline counters.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "records_loaded_total",
			Help:      "Number of records loaded per source and dataset kind.",
		}, []string{"source", "kind"}),
		loadDiagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "load_diagnostics_total",
			Help:      "Number of source files that produced no records, grouped by error code.",
		}, []string{"source", "code"}),
		recordsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "records_output_total",
			Help:      "Number of records in the merged output per dataset kind.",
		}, []string{"kind"}),
		duplicatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "duplicates_dropped_total",
			Help:      "Number of exact duplicate records dropped by union merges.",
		}, []string{"kind"}),
		unparsableTimestamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "unparsable_timestamps_total",
			Help:      "Number of loaded records whose timestamp was kept as text.",
		}, []string{"source", "kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Number of pipeline runs per prefer mode.",
		}, []string{"prefer"}),
	}
	m.registry.MustRegister(
		m.recordsLoaded,
		m.loadDiagnostics,
		m.recordsMerged,
		m.duplicatesDropped,
		m.unparsableTimestamps,
		m.runs,
	)
	return m
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordLoaded counts records loaded from one source collection.
func (m *Metrics) RecordLoaded(source, kind string, n int) {
	m.recordsLoaded.WithLabelValues(source, kind).Add(float64(n))
}

// RecordDiagnostic counts a load failure.
func (m *Metrics) RecordDiagnostic(source, code string) {
	m.loadDiagnostics.WithLabelValues(source, code).Inc()
}

// RecordMerged counts the merged output of one kind.
func (m *Metrics) RecordMerged(kind string, output, dropped int) {
	m.recordsMerged.WithLabelValues(kind).Add(float64(output))
	m.duplicatesDropped.WithLabelValues(kind).Add(float64(dropped))
}

// RecordUnparsable counts records with a textual timestamp.
func (m *Metrics) RecordUnparsable(source, kind string, n int) {
	if n == 0 {
		return
	}
	m.unparsableTimestamps.WithLabelValues(source, kind).Add(float64(n))
}

// RecordRun counts a completed pipeline run.
func (m *Metrics) RecordRun(prefer string) {
	m.runs.WithLabelValues(prefer).Inc()
}

// WriteTextfile writes every counter in the node exporter textfile format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
