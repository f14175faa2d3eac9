package clouddb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/cloud-db/client-go/internal/api"
	"github.com/cloud-db/client-go/internal/metrics"
)

// Client is the Cloud-DB client. It is safe for concurrent use.
type Client struct {
	apiClient *api.Client
	cooldown  api.CooldownPolicy
	logger    *slog.Logger
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(token string, cfg *clientConfig) (*api.Client, error) {
	policy := api.CooldownPolicy{
		AutoRetry:  cfg.autoRetry,
		MaxRetries: cfg.maxCooldownRetries,
		Delay:      cfg.cooldownDelay,
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}

	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
		api.WithCooldownPolicy(policy),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	if cfg.logger != nil {
		apiOpts = append(apiOpts, api.WithLogger(cfg.logger))
	}
	if cfg.registerer != nil {
		collector, err := metrics.New(cfg.registerer)
		if err != nil {
			return nil, err
		}
		apiOpts = append(apiOpts, api.WithRecorder(collector))
	}
	if cfg.tracerProvider != nil {
		apiOpts = append(apiOpts, api.WithTracerProvider(cfg.tracerProvider))
	}

	return api.New(token, apiOpts...)
}

// New creates a new Cloud-DB client for the given database token. No request
// is sent until the first operation.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	cfg := &clientConfig{
		baseURL:            defaultBaseURL,
		maxCooldownRetries: defaultMaxCooldownRetries,
		cooldownDelay:      defaultCooldownDelay,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	apiClient, err := buildAPIClient(token, cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiClient: apiClient,
		cooldown:  apiClient.Cooldown(),
		logger:    logger,
	}, nil
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	if c.apiClient.Session().Closed() {
		return ErrClientClosed
	}
	return nil
}

// Get returns the entry stored under name.
func (c *Client) Get(ctx context.Context, name string) (*Result, error) {
	payload, err := c.apiClient.Get(ctx, name)
	if err != nil {
		return nil, wrapError(err)
	}
	return newResult(payload)
}

// GetValue returns only the value stored under name, as decoded from JSON.
// It returns nil when the response carries no value.
func (c *Client) GetValue(ctx context.Context, name string) (any, error) {
	payload, err := c.apiClient.Get(ctx, name)
	if err != nil {
		return nil, wrapError(err)
	}
	return payload["value"], nil
}

// Delete removes the entry stored under name and reports whether the API
// confirmed the deletion. A missing key returns a NotFoundError.
func (c *Client) Delete(ctx context.Context, name string) (bool, error) {
	payload, err := c.apiClient.Delete(ctx, name)
	if err != nil {
		return false, wrapError(err)
	}
	return isSuccess(payload), nil
}

// All returns every entry stored for the token. Use Result.Data to read them.
func (c *Client) All(ctx context.Context) (*Result, error) {
	payload, err := c.apiClient.All(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	return newResult(payload)
}

// Set stores value under name and reports whether the API confirmed the
// write. The value is sent as JSON, so zero values are stored as such.
func (c *Client) Set(ctx context.Context, name string, value any) (bool, error) {
	payload, err := c.apiClient.Set(ctx, name, value)
	if err != nil {
		return false, wrapError(err)
	}
	return isSuccess(payload), nil
}

// SetAndGet stores value under name and returns the entry as read back from
// the API. The read-back is a second request: with auto-retry it is sent
// immediately, otherwise after the cooldown delay and, if that read is rate
// limited, once more.
func (c *Client) SetAndGet(ctx context.Context, name string, value any) (*Result, error) {
	if _, err := c.Set(ctx, name, value); err != nil {
		return nil, err
	}

	if c.cooldown.AutoRetry {
		return c.Get(ctx, name)
	}

	if err := api.Sleep(ctx, c.cooldown.Delay); err != nil {
		return nil, err
	}
	result, err := c.Get(ctx, name)
	if errors.Is(err, ErrOnCooldown) {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "clouddb read-back on cooldown, retrying once",
			slog.String("name", name),
		)
		return c.Get(ctx, name)
	}
	return result, err
}

// Add increments the integer stored under name by delta. delta must be a Go
// integer or an integral json.Number; anything else fails with a
// ValidationError before a request is sent. Result.Number holds the new value.
func (c *Client) Add(ctx context.Context, name string, delta any) (*Result, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	n, err := toInt64(delta)
	if err != nil {
		return nil, err
	}

	payload, err := c.apiClient.Add(ctx, name, n)
	if err != nil {
		return nil, wrapError(err)
	}
	return newResult(payload)
}

// Subtract decrements the integer stored under name by delta. It validates
// delta the same way as Add.
func (c *Client) Subtract(ctx context.Context, name string, delta any) (*Result, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	n, err := toInt64(delta)
	if err != nil {
		return nil, err
	}

	payload, err := c.apiClient.Subtract(ctx, name, n)
	if err != nil {
		return nil, wrapError(err)
	}
	return newResult(payload)
}

// Close releases the HTTP session. It is safe to call more than once and on
// a client that never sent a request.
func (c *Client) Close() error {
	return c.apiClient.Close()
}

func isSuccess(payload map[string]any) bool {
	success, ok := payload["success"].(bool)
	return ok && success
}

// toInt64 accepts Go integer types and integral json.Number values.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), nil
		}
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return 0, &ValidationError{
		Field:   "value",
		Message: fmt.Sprintf("must be a valid integer, got %T(%v)", v, v),
		Err:     ErrNotInteger,
	}
}
