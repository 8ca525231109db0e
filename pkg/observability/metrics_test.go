package observability

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricKey(t *testing.T) {
	t.Run("Should return the bare name without labels", func(t *testing.T) {
		assert.Equal(t, "requests", MetricKey("requests", nil))
	})

	t.Run("Should sort labels by key", func(t *testing.T) {
		key := MetricKey("requests", Labels{"status": "200", "method": "GET"})
		assert.Equal(t, "requests{method=GET,status=200}", key)
	})
}

func TestRegistryIncrement(t *testing.T) {
	t.Run("Should add the value to count and sum", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Increment("bytes", 10, nil)
		r.Increment("bytes", 30, nil)

		m, ok := r.Get("bytes", nil)
		require.True(t, ok)
		assert.Equal(t, 40.0, m.Count)
		assert.Equal(t, 40.0, m.Sum)
		assert.Equal(t, 10.0, m.Min)
		assert.Equal(t, 30.0, m.Max)
		assert.Equal(t, 1.0, m.Avg)
	})

	t.Run("Should keep separate samples per label set", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Increment("errors_total", 1, Labels{"code": "NOT_FOUND"})
		r.Increment("errors_total", 1, Labels{"code": "INTERNAL_ERROR"})

		assert.Len(t, r.All(), 2)
	})

	t.Run("Should hold invariants under randomized sequences", func(t *testing.T) {
		r := NewRegistry(nil)
		rng := rand.New(rand.NewSource(42))

		prevCount := 0.0
		prevMin := math.Inf(1)
		prevMax := math.Inf(-1)
		for i := 0; i < 500; i++ {
			v := float64(rng.Intn(1000) + 1)
			r.Increment("latency", v, Labels{"route": "/api/events"})

			m, ok := r.Get("latency", Labels{"route": "/api/events"})
			require.True(t, ok)
			assert.GreaterOrEqual(t, m.Count, prevCount)
			assert.LessOrEqual(t, m.Min, prevMin)
			assert.GreaterOrEqual(t, m.Max, prevMax)
			assert.InDelta(t, m.Sum/m.Count, m.Avg, 1e-9)

			prevCount, prevMin, prevMax = m.Count, m.Min, m.Max
		}
	})

	t.Run("Should be safe for concurrent use", func(t *testing.T) {
		r := NewRegistry(nil)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					r.Increment("hits", 1, nil)
				}
			}()
		}
		wg.Wait()

		m, _ := r.Get("hits", nil)
		assert.Equal(t, 2000.0, m.Count)
	})
}

func TestRegistryTimingAndGauge(t *testing.T) {
	t.Run("Should record duration and count samples", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Timing("db_query", 12, Labels{"operation": "select"})

		d, ok := r.Get("db_query_duration_ms", Labels{"operation": "select"})
		require.True(t, ok)
		assert.Equal(t, 12.0, d.Sum)

		c, ok := r.Get("db_query_count", Labels{"operation": "select"})
		require.True(t, ok)
		assert.Equal(t, 1.0, c.Count)
	})

	t.Run("Should overwrite on gauge", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Gauge("db_connections_active", 1, nil)
		r.Gauge("db_connections_active", 0, nil)

		m, _ := r.Get("db_connections_active", nil)
		assert.Equal(t, 1.0, m.Count)
		assert.Equal(t, 0.0, m.Sum)
		assert.Equal(t, 0.0, m.Avg)
	})
}

func TestRegistrySummaryAndReset(t *testing.T) {
	r := NewRegistry(nil)
	r.Increment("a", 1, nil)
	r.Increment("a", 2, nil)
	r.Timing("b", 10, nil)

	summary := r.Summary()
	assert.Equal(t, 3, summary.TotalMetrics)
	assert.Equal(t, 1.0, summary.Metrics["a"].Avg)
	assert.Equal(t, 2.0, summary.Metrics["a"].Max)

	r.Reset()
	assert.Empty(t, r.All())
	assert.Equal(t, 0, r.Summary().TotalMetrics)
}

func TestPrometheusBridge(t *testing.T) {
	r := NewRegistry(nil)
	r.Increment("errors_total", 1, Labels{"code": "NOT_FOUND", "status": "404"})
	r.Increment("errors_total", 1, Labels{"code": "NOT_FOUND", "status": "404"})

	bridge := NewPrometheusBridge(r, "signalwatcher")
	expected := `
# HELP signalwatcher_errors_total Running sum of errors_total
# TYPE signalwatcher_errors_total untyped
signalwatcher_errors_total{code="NOT_FOUND",status="404"} 2
`
	reg := prometheus.NewRegistry()
	reg.MustRegister(bridge)

	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "signalwatcher_errors_total")
	assert.NoError(t, err)
}
