// Package metrics holds the Prometheus instrumentation for sink writes.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type SinkMetrics struct {
	writes    *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// NewSinkMetrics creates counters and latency histograms for sink writes,
// labelled by sink and status. Registering twice with the same namespace
// returns the already registered collectors.
func NewSinkMetrics(namespace string, reg prometheus.Registerer) SinkMetrics {
	m := SinkMetrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_sink_writes_total", namespace),
				Help: "How many block writes were attempted, partitioned by sink and status.",
			},
			[]string{"sink", "status"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_sink_write_duration_seconds", namespace),
				Help:    "How long block writes take, partitioned by sink.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
	}
	m.writes = registerOnce(reg, m.writes).(*prometheus.CounterVec)
	m.latencies = registerOnce(reg, m.latencies).(*prometheus.HistogramVec)
	return m
}

// Writes returns the write counter for sink and status. On a zero
// SinkMetrics it returns an unregistered counter.
func (m SinkMetrics) Writes(sink, status string) prometheus.Counter {
	if m.writes == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: "unregistered_sink_writes_total"})
	}
	return m.writes.WithLabelValues(sink, status)
}

// Latency starts a write timer for sink. On a zero SinkMetrics the
// observation is discarded.
func (m SinkMetrics) Latency(sink string) *prometheus.Timer {
	if m.latencies == nil {
		return prometheus.NewTimer(prometheus.ObserverFunc(func(float64) {}))
	}
	return prometheus.NewTimer(m.latencies.WithLabelValues(sink))
}

func registerOnce(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
