package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSinkMetricsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewSinkMetrics("test", reg)
	b := NewSinkMetrics("test", reg)

	a.Writes("postgres", "ok").Inc()
	b.Writes("postgres", "ok").Inc()
	b.Writes("postgres", "error").Inc()

	require.Equal(t, 2.0, testutil.ToFloat64(a.Writes("postgres", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.Writes("postgres", "error")))

	a.Latency("postgres").ObserveDuration()
	require.Equal(t, 1, testutil.CollectAndCount(b.latencies))
}

func TestZeroSinkMetricsIsUsable(t *testing.T) {
	var m SinkMetrics
	require.NotPanics(t, func() {
		m.Writes("postgres", "ok").Inc()
		m.Latency("postgres").ObserveDuration()
	})
}
