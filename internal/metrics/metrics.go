// Package metrics exposes Prometheus instrumentation for Cloud-DB requests.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cloud-db/client-go/internal/api"
)

const namespace = "clouddb_client"

// Collector records request, cooldown and error metrics. It implements
// api.Recorder and is safe for concurrent use.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cooldownsTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
}

var _ api.Recorder = (*Collector)(nil)

// New registers the collector's metrics with registerer. A nil registerer
// uses prometheus.DefaultRegisterer. Metrics already registered by another
// Collector are shared, so several clients can report to one registry.
func New(registerer prometheus.Registerer) (*Collector, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	// Unregistered; see register.
	factory := promauto.With(nil)

	requestsTotal, err := register(registerer, factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of Cloud-DB HTTP requests sent",
		},
		[]string{"endpoint", "method", "status"},
	))
	if err != nil {
		return nil, err
	}

	requestDuration, err := register(registerer, factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of Cloud-DB HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	))
	if err != nil {
		return nil, err
	}

	cooldownsTotal, err := register(registerer, factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldowns_total",
			Help:      "Total number of rate-limited responses by outcome",
		},
		[]string{"endpoint", "outcome"},
	))
	if err != nil {
		return nil, err
	}

	errorsTotal, err := register(registerer, factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of failed Cloud-DB requests by error kind",
		},
		[]string{"endpoint", "kind"},
	))
	if err != nil {
		return nil, err
	}

	return &Collector{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		cooldownsTotal:  cooldownsTotal,
		errorsTotal:     errorsTotal,
	}, nil
}

// register adds c to registerer, returning the already registered collector
// when an identical one exists.
func register[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("register metrics: %w", err)
}

// ObserveRequest records one HTTP exchange. A zero status means no response
// was received.
func (c *Collector) ObserveRequest(endpoint api.Endpoint, method string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}

	statusLabel := "none"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	c.requestsTotal.WithLabelValues(string(endpoint), method, statusLabel).Inc()
	c.requestDuration.WithLabelValues(string(endpoint), method).Observe(elapsed.Seconds())
}

// ObserveCooldown records a rate-limited response and whether it was retried.
func (c *Collector) ObserveCooldown(endpoint api.Endpoint, retried bool) {
	if c == nil {
		return
	}

	outcome := "returned"
	if retried {
		outcome = "retried"
	}
	c.cooldownsTotal.WithLabelValues(string(endpoint), outcome).Inc()
}

// ObserveError records a failed request attempt.
func (c *Collector) ObserveError(endpoint api.Endpoint, kind string) {
	if c == nil {
		return
	}

	c.errorsTotal.WithLabelValues(string(endpoint), kind).Inc()
}
