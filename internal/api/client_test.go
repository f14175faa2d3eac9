package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cloud-db/client-go/internal/apierrors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(url)}, opts...)
	client, err := New("test-token", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func fastRetry(max int) Option {
	return WithCooldownPolicy(CooldownPolicy{AutoRetry: true, MaxRetries: max, Delay: time.Millisecond})
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, apierrors.ErrMissingToken)
}

func TestNew_DefaultValues(t *testing.T) {
	client, err := New("test-token")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultCooldownPolicy(), client.Cooldown())
	assert.NotNil(t, client.logger)
	assert.NotNil(t, client.tracer)
	assert.False(t, client.Session().Active())
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("test-token", WithBaseURL("  "))
	assert.Error(t, err)
}

func TestNew_NegativeMaxRetries(t *testing.T) {
	client, err := New("test-token", WithCooldownPolicy(CooldownPolicy{AutoRetry: true, MaxRetries: -3}))
	require.NoError(t, err)
	assert.Equal(t, 0, client.Cooldown().MaxRetries)
}

func TestClient_Do_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/get", r.URL.Path)
		assert.Equal(t, "my key&more", r.URL.Query().Get("name"))
		assert.Empty(t, r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": "my key&more", "value": 5})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/")

	payload, err := client.Get(context.Background(), "my key&more")
	require.NoError(t, err)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, json.Number("5"), payload["value"])
}

func TestClient_Do_AllHasNoName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/all", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.All(context.Background())
	require.NoError(t, err)
}

func TestClient_Do_EndpointMethods(t *testing.T) {
	type seen struct {
		method string
		path   string
		body   string
	}
	var (
		mu    sync.Mutex
		calls []seen
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, seen{r.Method, r.URL.Path, string(body)})
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := context.Background()

	_, err := client.Set(ctx, "k", "v")
	require.NoError(t, err)
	_, err = client.Add(ctx, "k", 3)
	require.NoError(t, err)
	_, err = client.Subtract(ctx, "k", 2)
	require.NoError(t, err)
	_, err = client.Delete(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, []seen{
		{http.MethodPost, "/set", `{"value":"v"}`},
		{http.MethodPatch, "/add", `{"value":3}`},
		{http.MethodPatch, "/subtract", `{"value":2}`},
		{http.MethodDelete, "/delete", ""},
	}, calls)
}

func TestClient_Do_FalsyValuesAreSent(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"zero", 0, `{"value":0}`},
		{"empty string", "", `{"value":""}`},
		{"false", false, `{"value":false}`},
		{"null", nil, `{"value":null}`},
		{"html is not escaped", "<b>", `{"value":"<b>"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, tt.expected, string(body))
				writeJSON(w, http.StatusOK, map[string]any{"success": true})
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			_, err := client.Set(context.Background(), "k", tt.value)
			require.NoError(t, err)
		})
	}
}

func TestClient_Do_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "missing")

	var notFound *apierrors.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, map[string]any{"message": "not found"}, notFound.Body)
}

func TestClient_Do_CooldownWithoutRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "You are on Cooldown"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Get(context.Background(), "k")

	var cooldown *apierrors.OnCooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Equal(t, "You are on Cooldown", cooldown.Message)
	assert.Equal(t, 1, cooldown.Attempts)
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_Do_CooldownAutoRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"value":7}`, string(body))
		assert.Equal(t, "k", r.URL.Query().Get("name"))

		if requests.Add(1) <= 2 {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "Cooldown"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fastRetry(5))
	payload, err := client.Set(context.Background(), "k", 7)
	require.NoError(t, err)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, int32(3), requests.Load())
}

func TestClient_Do_CooldownWithMalformedBodyIsRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, "<html>rate limited</html>")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": "k", "value": 1})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fastRetry(3))
	payload, err := client.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_Do_CooldownRetriesExhausted(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "Cooldown, slow down"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fastRetry(2))
	_, err := client.Get(context.Background(), "k")

	var cooldown *apierrors.OnCooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Equal(t, 3, cooldown.Attempts)
	assert.Equal(t, int32(3), requests.Load())
}

func TestClient_Do_CooldownWaitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Cooldown"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithCooldownPolicy(CooldownPolicy{AutoRetry: true, MaxRetries: 5, Delay: time.Hour}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Do_OtherErrorsAreNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Service Unavailable"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, fastRetry(5))
	_, err := client.Get(context.Background(), "k")

	var httpErr *apierrors.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "Service Unavailable", httpErr.Body)
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url)
	_, err := client.Get(context.Background(), "k")

	var netErr *apierrors.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, url+"/get?name=k", netErr.URL)
	assert.Equal(t, 1, netErr.Attempt)
}

func TestClient_Session(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.False(t, client.Session().Active())

	_, err := client.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, client.Session().Active())

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.True(t, client.Session().Closed())

	_, err = client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, apierrors.ErrClientClosed)
}

func TestClient_CloseWithoutSession(t *testing.T) {
	client, err := New("test-token")
	require.NoError(t, err)
	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestClient_InjectedHTTPClient(t *testing.T) {
	var used atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	injected := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		used.Store(true)
		return http.DefaultTransport.RoundTrip(r)
	})}

	client := newTestClient(t, server.URL, WithHTTPClient(injected))
	assert.True(t, client.Session().Active())

	_, err := client.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, used.Load())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type fakeRecorder struct {
	mu        sync.Mutex
	requests  []int
	cooldowns []bool
	errors    []string
}

func (f *fakeRecorder) ObserveRequest(_ Endpoint, _ string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, status)
}

func (f *fakeRecorder) ObserveCooldown(_ Endpoint, retried bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cooldowns = append(f.cooldowns, retried)
}

func (f *fakeRecorder) ObserveError(_ Endpoint, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, kind)
}

func TestClient_Recorder(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			writeJSON(w, http.StatusForbidden, map[string]any{"message": "Cooldown"})
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	client := newTestClient(t, server.URL, fastRetry(1), WithRecorder(rec))

	_, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	assert.Equal(t, []int{403, 404}, rec.requests)
	assert.Equal(t, []bool{true}, rec.cooldowns)
	assert.Equal(t, []string{"cooldown", "not_found"}, rec.errors)
}

func TestClient_Tracing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	client := newTestClient(t, server.URL, WithTracerProvider(tp))
	_, err := client.Get(context.Background(), "k")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "clouddb.get", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "GET", attrs["http.method"])
	assert.Equal(t, int64(200), attrs["http.status_code"])
	assert.Equal(t, Fingerprint("test-token"), attrs["clouddb.token"])
}
