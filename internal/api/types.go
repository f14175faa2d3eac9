package api

import "time"

// Endpoint names a Cloud-DB API route relative to the base URL.
type Endpoint string

// Cloud-DB endpoints.
const (
	EndpointAll      Endpoint = "all"
	EndpointGet      Endpoint = "get"
	EndpointDelete   Endpoint = "delete"
	EndpointSet      Endpoint = "set"
	EndpointAdd      Endpoint = "add"
	EndpointSubtract Endpoint = "subtract"
)

// Request describes a single Cloud-DB call.
type Request struct {
	Endpoint Endpoint
	Method   string
	// Name is sent as the "name" query parameter when HasName is set.
	Name    string
	HasName bool
	// Body is sent as the JSON request body when non-nil.
	Body *ValueBody
}

// ValueBody is the JSON body of set/add/subtract requests.
type ValueBody struct {
	Value any `json:"value"`
}

// Recorder receives per-request observations. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveRequest(endpoint Endpoint, method string, status int, elapsed time.Duration)
	ObserveCooldown(endpoint Endpoint, retried bool)
	ObserveError(endpoint Endpoint, kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(Endpoint, string, int, time.Duration) {}
func (nopRecorder) ObserveCooldown(Endpoint, bool)                     {}
func (nopRecorder) ObserveError(Endpoint, string)                      {}
