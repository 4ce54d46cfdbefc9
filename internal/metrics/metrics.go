// Package metrics counts harvest progress in Prometheus format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mailsweep"

// Reconnect results.
const (
	ReconnectOK     = "ok"
	ReconnectFailed = "failed"
)

// Metrics holds the counters of one process. Each instance has its own
// registry so tests do not share state.
type Metrics struct {
	registry *prometheus.Registry

	RecordsExtracted   prometheus.Counter
	ExtractionFailures prometheus.Counter
	Reconnects         *prometheus.CounterVec
	MessagesSkipped    prometheus.Counter
	FoldersVisited     prometheus.Counter
}

// New creates and registers all counters.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Messages successfully turned into records",
		}),
		ExtractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Messages or folders that could not be read during a sweep",
		}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Recovery reconnect attempts by result",
		}, []string{"result"}),
		MessagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_skipped_total",
			Help:      "Failures skipped without reconnecting because the folder's restart budget was spent",
		}),
		FoldersVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "folders_visited_total",
			Help:      "Distinct folders entered by sweeps",
		}),
	}
	m.registry.MustRegister(
		m.RecordsExtracted,
		m.ExtractionFailures,
		m.Reconnects,
		m.MessagesSkipped,
		m.FoldersVisited,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes all counters in the text exposition format, for
// pickup by node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
