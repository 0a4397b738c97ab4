package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestCounters_Increment(t *testing.T) {
	runs := MatchingRuns.WithLabelValues("keyword_weighted")
	before := counterValue(t, runs)
	runs.Inc()
	assert.Equal(t, before+1, counterValue(t, runs))

	failed := KeywordExtractions.WithLabelValues("demand", "failed")
	before = counterValue(t, failed)
	failed.Add(2)
	assert.Equal(t, before+2, counterValue(t, failed))
}

func TestWorkerJobsActive_Gauge(t *testing.T) {
	g := WorkerJobsActive.WithLabelValues("compute-matches")
	g.Inc()
	g.Inc()
	g.Dec()
	assert.Equal(t, float64(1), gaugeValue(t, g))
	g.Dec()
}
