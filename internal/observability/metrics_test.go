package observability

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

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.UnitsProcessed.Inc()
	a.UnitFailures.WithLabelValues("no_data").Inc()

	assert.Equal(t, 1.0, counterValue(t, a.UnitsProcessed))
	assert.Equal(t, 0.0, counterValue(t, b.UnitsProcessed))
	assert.Equal(t, 1.0, counterValue(t, a.UnitFailures.WithLabelValues("no_data")))
	assert.Equal(t, 0.0, counterValue(t, b.UnitFailures.WithLabelValues("no_data")))
}
