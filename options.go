package clouddb

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloud-db/client-go/internal/api"
)

const (
	defaultBaseURL            = api.DefaultBaseURL
	defaultCooldownDelay      = api.DefaultCooldownDelay
	defaultMaxCooldownRetries = api.DefaultMaxCooldownRetries
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	// Cooldown handling
	autoRetry          bool
	maxCooldownRetries int
	cooldownDelay      time.Duration

	logger         *slog.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the API base URL.
// Default: https://cloud-db.ml
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client. The client stays owned by the
// caller: Close does not release it.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the request timeout of the HTTP client created by the
// library. It has no effect together with WithHTTPClient.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithAutoRetry makes the client wait and re-send requests that hit the
// rate limit instead of returning an OnCooldownError.
func WithAutoRetry(enabled bool) Option {
	return func(c *clientConfig) {
		c.autoRetry = enabled
	}
}

// WithMaxCooldownRetries sets how many times a rate-limited request is
// re-sent when auto-retry is enabled.
// Default: 5
func WithMaxCooldownRetries(n int) Option {
	return func(c *clientConfig) {
		c.maxCooldownRetries = n
	}
}

// WithCooldownDelay sets the wait before re-sending a rate-limited request,
// and before the read-back of SetAndGet.
// Default: 1 second
func WithCooldownDelay(d time.Duration) Option {
	return func(c *clientConfig) {
		c.cooldownDelay = d
	}
}

// WithLogger sets the logger used for request diagnostics. Tokens are never
// logged, only a short fingerprint.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMetrics registers Prometheus request metrics with registerer.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = registerer
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for request
// spans. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *clientConfig) {
		c.tracerProvider = tp
	}
}
