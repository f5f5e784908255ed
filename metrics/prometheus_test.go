package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg).(*PrometheusRecorder)

	labels := map[string]string{"network": "84532", "phase": "pending"}
	rec.IncCounter("transition", labels)
	rec.IncCounter("transition", labels)
	rec.ObserveLatency("sign", 1500*time.Millisecond, labels)

	got := testutil.ToFloat64(rec.counters.With(prometheus.Labels{
		"type": "transition", "network": "84532", "phase": "pending",
	}))
	assert.Equal(t, float64(2), got)

	n, err := testutil.GatherAndCount(reg, "usdcpay_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
