package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/cloud-db/client-go/internal/apierrors"
)

// Session owns the HTTP client used for Cloud-DB requests. The client is
// created on first use unless one was injected.
type Session struct {
	mu      sync.Mutex
	client  *http.Client
	owned   bool
	closed  bool
	timeout time.Duration
}

// NewSession returns a session. A nil client makes the session create and
// own its client lazily; a non-nil client is used as is and never torn down.
func NewSession(client *http.Client, timeout time.Duration) *Session {
	return &Session{client: client, timeout: timeout}
}

// Acquire returns the session's HTTP client, creating it on first use.
func (s *Session) Acquire() (*http.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apierrors.ErrClientClosed
	}
	if s.client == nil {
		s.client = &http.Client{
			Timeout:   s.timeout,
			Transport: newTransport(),
		}
		s.owned = true
	}
	return s.client, nil
}

// Active reports whether an HTTP client has been created or injected and
// the session is still open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.client != nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the session. It is safe to call when no client was ever
// created and on an already closed session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.owned && s.client != nil {
		s.client.CloseIdleConnections()
	}
	s.client = nil
	return nil
}

func newTransport() http.RoundTripper {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}
	return http.DefaultTransport
}
