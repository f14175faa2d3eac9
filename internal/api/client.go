package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloud-db/client-go/internal/apierrors"
)

// DefaultBaseURL is the public Cloud-DB API origin.
const DefaultBaseURL = "https://cloud-db.ml"

const instrumentationName = "github.com/cloud-db/client-go"

// Client is the HTTP API client.
type Client struct {
	baseURL     string
	token       string
	fingerprint string
	session     *Session
	httpClient  *http.Client
	timeout     time.Duration
	cooldown    CooldownPolicy
	logger      *slog.Logger
	recorder    Recorder
	tracer      trace.Tracer
}

// Option configures the API client.
type Option func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient injects an HTTP client. The client is owned by the caller
// and is not torn down by Close.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithTimeout sets the timeout of the lazily created HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithCooldownPolicy sets how rate-limited requests are handled.
func WithCooldownPolicy(p CooldownPolicy) Option {
	return func(c *Client) {
		c.cooldown = p
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracerProvider sets the provider of the tracer used for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// New creates a new API client.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, apierrors.ErrMissingToken
	}

	c := &Client{
		baseURL:  DefaultBaseURL,
		token:    token,
		cooldown: DefaultCooldownPolicy(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if strings.TrimSpace(c.baseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if c.cooldown.MaxRetries < 0 {
		c.cooldown.MaxRetries = 0
	}
	if c.tracer == nil {
		c.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}

	c.fingerprint = Fingerprint(token)
	c.session = NewSession(c.httpClient, c.timeout)
	return c, nil
}

// Cooldown returns the client's cooldown policy.
func (c *Client) Cooldown() CooldownPolicy {
	return c.cooldown
}

// Session returns the session owning the HTTP client.
func (c *Client) Session() *Session {
	return c.session
}

// Close releases the session.
func (c *Client) Close() error {
	return c.session.Close()
}

// Do executes req and returns the decoded JSON object of a 200 response.
// Rate-limited requests are re-issued according to the cooldown policy;
// every other failure is returned as a classified error.
func (c *Client) Do(ctx context.Context, req *Request) (map[string]any, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	if req.Method == "" {
		return nil, errors.New("HTTP method is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	fullURL := c.buildURL(req)

	for attempt := 1; ; attempt++ {
		payload, err := c.attempt(ctx, req, fullURL, body, attempt)
		if err == nil {
			return payload, nil
		}

		var cooldown *apierrors.OnCooldownError
		if !errors.As(err, &cooldown) {
			return nil, err
		}
		cooldown.Attempts = attempt

		if !c.cooldown.ShouldRetry(attempt) {
			c.recorder.ObserveCooldown(req.Endpoint, false)
			return nil, err
		}

		c.recorder.ObserveCooldown(req.Endpoint, true)
		c.logger.LogAttrs(ctx, slog.LevelInfo, "clouddb cooldown, retrying",
			slog.String("endpoint", string(req.Endpoint)),
			slog.Int("attempt", attempt),
			slog.Duration("delay", c.cooldown.Delay),
			slog.String("token", c.fingerprint),
		)
		if err := c.cooldown.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, req *Request, fullURL string, body []byte, attempt int) (map[string]any, error) {
	httpClient, err := c.session.Acquire()
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "clouddb."+string(req.Endpoint),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("clouddb.endpoint", string(req.Endpoint)),
			attribute.Int("clouddb.attempt", attempt),
			attribute.String("clouddb.token", c.fingerprint),
		),
	)
	defer span.End()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", c.token)
	httpReq.Header.Set("Accept", jsonContentType)
	if body != nil {
		httpReq.Header.Set("Content-Type", jsonContentType)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		c.recorder.ObserveRequest(req.Endpoint, req.Method, 0, time.Since(start))
		netErr := &apierrors.NetworkError{Err: err, URL: fullURL, Attempt: attempt}
		c.fail(ctx, span, req, netErr)
		return nil, netErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.recorder.ObserveRequest(req.Endpoint, req.Method, resp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		netErr := &apierrors.NetworkError{Err: err, URL: fullURL, Attempt: attempt}
		c.fail(ctx, span, req, netErr)
		return nil, netErr
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "clouddb request",
		slog.String("method", req.Method),
		slog.String("endpoint", string(req.Endpoint)),
		slog.Int("status", resp.StatusCode),
		slog.Int("attempt", attempt),
		slog.Duration("elapsed", elapsed),
		slog.String("token", c.fingerprint),
	)

	payload, err := handleResponse(resp.StatusCode, resp.Header.Get("Content-Type"), raw, req.Name)
	if err != nil {
		c.fail(ctx, span, req, err)
		return nil, err
	}
	return payload, nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, req *Request, err error) {
	kind := ErrorKind(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	c.recorder.ObserveError(req.Endpoint, kind)

	level := slog.LevelWarn
	if kind == "not_found" || kind == "cooldown" {
		level = slog.LevelDebug
	}
	c.logger.LogAttrs(ctx, level, "clouddb request failed",
		slog.String("endpoint", string(req.Endpoint)),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
}

func (c *Client) buildURL(req *Request) string {
	full := strings.TrimRight(c.baseURL, "/") + "/" + string(req.Endpoint)
	if req.HasName {
		full += "?" + url.Values{"name": {req.Name}}.Encode()
	}
	return full
}

func encodeBody(body *ValueBody) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
