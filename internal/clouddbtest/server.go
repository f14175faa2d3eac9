// Package clouddbtest provides an in-memory Cloud-DB server for tests.
package clouddbtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
)

// Messages returned by the fake server.
const (
	CooldownMessage    = "You are on Cooldown! Try again in 1 second."
	NotFoundMessage    = "Key not found"
	NotANumberMessage  = "The Data is not a Number"
	MissingNameMessage = "Missing name"
	InvalidBodyMessage = "Invalid value"
)

type store struct {
	keys   []string
	values map[string]any
}

func (s *store) set(name string, value any) {
	if _, ok := s.values[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.values[name] = value
}

func (s *store) delete(name string) {
	delete(s.values, name)
	for i, k := range s.keys {
		if k == name {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Server emulates the Cloud-DB HTTP API. Each token gets its own store.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	stores   map[string]*store
	cooldown int
	requests map[string]int
	bodies   map[string][]string
}

// NewServer starts a fake Cloud-DB server. Call Close when done.
func NewServer() *Server {
	s := &Server{
		stores:   make(map[string]*store),
		requests: make(map[string]int),
		bodies:   make(map[string][]string),
	}

	router := mux.NewRouter()
	router.Use(s.countMiddleware, s.authMiddleware, s.cooldownMiddleware)

	router.HandleFunc("/all", s.handleAll).Methods(http.MethodGet)
	router.HandleFunc("/get", s.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/delete", s.handleDelete).Methods(http.MethodDelete)
	router.HandleFunc("/set", s.handleSet).Methods(http.MethodPost)
	router.HandleFunc("/add", s.handleAdd(1)).Methods(http.MethodPatch)
	router.HandleFunc("/subtract", s.handleAdd(-1)).Methods(http.MethodPatch)

	s.srv = httptest.NewServer(router)
	return s
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// CooldownNext makes the next n requests fail with the 403 cooldown response.
func (s *Server) CooldownNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldown = n
}

// Requests returns how many requests reached path, e.g. "/get".
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// Bodies returns the raw request bodies received on path.
func (s *Server) Bodies(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies[path]...)
}

// Seed stores value under name for token.
func (s *Server) Seed(token, name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeFor(token).set(name, value)
}

// Value returns the value stored under name for token.
func (s *Server) Value(token, name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.storeFor(token).values[name]
	return v, ok
}

// storeFor must be called with mu held.
func (s *Server) storeFor(token string) *store {
	st, ok := s.stores[token]
	if !ok {
		st = &store{values: make(map[string]any)}
		s.stores[token] = st
	}
	return st
}

func (s *Server) countMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		if r.Body != nil {
			body.ReadFrom(r.Body)
			r.Body.Close()
		}
		r.Body = io.NopCloser(bytes.NewReader(body.Bytes()))

		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.bodies[r.URL.Path] = append(s.bodies[r.URL.Path], body.String())
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cooldownMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		onCooldown := s.cooldown > 0
		if onCooldown {
			s.cooldown--
		}
		s.mu.Unlock()

		if onCooldown {
			writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": CooldownMessage})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.storeFor(r.Header.Get("Authorization"))
	data := make([]map[string]any, 0, len(st.keys))
	for _, k := range st.keys {
		data = append(data, map[string]any{"name": k, "value": st.values[k]})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	value, found := s.storeFor(r.Header.Get("Authorization")).values[name]
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": NotFoundMessage})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": name, "value": value})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	st := s.storeFor(r.Header.Get("Authorization"))
	_, found := st.values[name]
	if found {
		st.delete(name)
	}
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": NotFoundMessage})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Deleted " + name})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	name, ok := nameParam(w, r)
	if !ok {
		return
	}
	value, ok := valueBody(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	s.storeFor(r.Header.Get("Authorization")).set(name, value)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Set " + name})
}

func (s *Server) handleAdd(sign int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := nameParam(w, r)
		if !ok {
			return
		}
		value, ok := valueBody(w, r)
		if !ok {
			return
		}
		delta, ok := asInt(value)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": InvalidBodyMessage})
			return
		}

		s.mu.Lock()
		st := s.storeFor(r.Header.Get("Authorization"))
		current, found := st.values[name]
		if !found {
			s.mu.Unlock()
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": NotFoundMessage})
			return
		}
		n, ok := asInt(current)
		if !ok {
			s.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": NotANumberMessage})
			return
		}
		n += sign * delta
		st.set(name, json.Number(strconv.FormatInt(n, 10)))
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "number": n})
	}
}

func nameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !r.URL.Query().Has("name") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": MissingNameMessage})
		return "", false
	}
	return r.URL.Query().Get("name"), true
}

func valueBody(w http.ResponseWriter, r *http.Request) (any, bool) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": InvalidBodyMessage})
		return nil, false
	}
	value, ok := body["value"]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": InvalidBodyMessage})
		return nil, false
	}
	return value, true
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
