package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-db/client-go/internal/api"
)

func TestNew_RegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector, err := New(registry)
	require.NoError(t, err)
	require.NotNil(t, collector)

	collector.ObserveRequest(api.EndpointGet, "GET", 200, time.Millisecond)
	collector.ObserveCooldown(api.EndpointGet, true)
	collector.ObserveError(api.EndpointGet, "cooldown")

	families, err := registry.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"clouddb_client_requests_total",
		"clouddb_client_request_duration_seconds",
		"clouddb_client_cooldowns_total",
		"clouddb_client_errors_total",
	}, names)
}

func TestNew_SharedRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := New(registry)
	require.NoError(t, err)
	second, err := New(registry)
	require.NoError(t, err)

	first.ObserveRequest(api.EndpointGet, "GET", 200, time.Millisecond)
	second.ObserveRequest(api.EndpointGet, "GET", 200, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.requestsTotal.WithLabelValues("get", "GET", "200")))
	assert.Same(t, first.requestsTotal, second.requestsTotal)
}

func TestNew_ConflictingRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "A different metric with the same name",
	}))

	collector, err := New(registry)
	assert.Error(t, err)
	assert.Nil(t, collector)
}

func newCollector(t *testing.T) *Collector {
	t.Helper()
	collector, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	return collector
}

func TestCollector_ObserveRequest(t *testing.T) {
	collector := newCollector(t)

	collector.ObserveRequest(api.EndpointSet, "POST", 200, 10*time.Millisecond)
	collector.ObserveRequest(api.EndpointSet, "POST", 200, 20*time.Millisecond)
	collector.ObserveRequest(api.EndpointSet, "POST", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.requestsTotal.WithLabelValues("set", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.requestsTotal.WithLabelValues("set", "POST", "none")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.requestDuration))
}

func TestCollector_ObserveCooldown(t *testing.T) {
	collector := newCollector(t)

	collector.ObserveCooldown(api.EndpointAdd, true)
	collector.ObserveCooldown(api.EndpointAdd, true)
	collector.ObserveCooldown(api.EndpointAdd, false)

	expected := `
# HELP clouddb_client_cooldowns_total Total number of rate-limited responses by outcome
# TYPE clouddb_client_cooldowns_total counter
clouddb_client_cooldowns_total{endpoint="add",outcome="retried"} 2
clouddb_client_cooldowns_total{endpoint="add",outcome="returned"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(collector.cooldownsTotal, strings.NewReader(expected)))
}

func TestCollector_ObserveError(t *testing.T) {
	collector := newCollector(t)

	collector.ObserveError(api.EndpointGet, "not_found")
	collector.ObserveError(api.EndpointDelete, "network")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.errorsTotal.WithLabelValues("get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.errorsTotal.WithLabelValues("delete", "network")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector
	assert.NotPanics(t, func() {
		collector.ObserveRequest(api.EndpointAll, "GET", 200, time.Millisecond)
		collector.ObserveCooldown(api.EndpointAll, false)
		collector.ObserveError(api.EndpointAll, "http")
	})
}
