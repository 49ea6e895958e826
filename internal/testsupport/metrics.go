package testsupport

import (
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GetMetricValue returns the value of the first series of metricName in the
// default registry whose labels include labelFilter. Counters and gauges
// report their value, histograms their sample count. Missing series read as 0.
func GetMetricValue(t *testing.T, metricName string, labelFilter map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "failed to gather metrics")

	i := slices.IndexFunc(families, func(mf *io_prometheus_client.MetricFamily) bool {
		return mf.GetName() == metricName
	})
	if i < 0 {
		return 0
	}

	for _, m := range families[i].GetMetric() {
		if !hasLabels(m, labelFilter) {
			continue
		}
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	return 0
}

func hasLabels(m *io_prometheus_client.Metric, filter map[string]string) bool {
	for name, want := range filter {
		found := slices.ContainsFunc(m.GetLabel(), func(p *io_prometheus_client.LabelPair) bool {
			return p.GetName() == name && p.GetValue() == want
		})
		if !found {
			return false
		}
	}
	return true
}

// AssertMetricDelta asserts that fn moves the metric by exactly expectedDelta.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()
	after := GetMetricValue(t, metricName, labels)

	assert.Equal(t, expectedDelta, after-before, "metric %s%v delta mismatch", metricName, labels)
}

// AssertMetricDeltaAsync is AssertMetricDelta for metrics updated by
// background goroutines such as the auto-poll loop.
func AssertMetricDeltaAsync(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()

	require.Eventually(t, func() bool {
		return GetMetricValue(t, metricName, labels) == before+expectedDelta
	}, 3*time.Second, 20*time.Millisecond, "metric %s%v never moved by %.0f", metricName, labels, expectedDelta)
}

// AssertHistogramRecorded asserts that the histogram holds at least one sample.
func AssertHistogramRecorded(t *testing.T, metricName string, labels map[string]string) {
	t.Helper()

	assert.Greater(t, GetMetricValue(t, metricName, labels), 0.0, "histogram %s%v should have recorded samples", metricName, labels)
}
