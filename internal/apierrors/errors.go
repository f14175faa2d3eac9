// Package apierrors provides shared error types for the Cloud-DB client.
package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingToken is returned when no database token is provided.
	ErrMissingToken = errors.New("database token is required")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrOnCooldown is returned when the API reports the token is rate limited.
	ErrOnCooldown = errors.New("on cooldown")

	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrBadRequest is returned when the API rejects the request input.
	ErrBadRequest = errors.New("bad request")

	// ErrNotANumber is returned when add/subtract targets a key whose stored value is not numeric.
	ErrNotANumber = errors.New("stored value is not a number")

	// ErrHTTP is returned for any response status the client does not classify further.
	ErrHTTP = errors.New("unexpected HTTP status")

	// ErrNotInteger is returned when an add/subtract amount is not an integer.
	ErrNotInteger = errors.New("value must be a valid integer")

	// ErrDecode is returned when a response body cannot be decoded.
	ErrDecode = errors.New("invalid response body")
)

// NotANumberMessage is the message the API sends when add/subtract targets
// a non-numeric value.
const NotANumberMessage = "The Data is not a Number"

// OnCooldownError indicates the token hit the server-side rate limit.
type OnCooldownError struct {
	StatusCode int
	Message    string
	// Attempts is the number of requests issued before giving up.
	Attempts int
}

func (e *OnCooldownError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "on cooldown"
}

// Is implements errors.Is for sentinel error matching.
func (e *OnCooldownError) Is(target error) bool {
	return target == ErrOnCooldown
}

// Retryable reports whether the request may succeed when issued again.
func (e *OnCooldownError) Retryable() bool { return true }

// NotFoundError indicates the requested key does not exist.
type NotFoundError struct {
	// Body is the decoded response body: a map for JSON bodies, a string otherwise.
	Body any
}

func (e *NotFoundError) Error() string {
	return FormatBody(e.Body)
}

// Is implements errors.Is for sentinel error matching.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// BadRequestError indicates the API rejected the request (HTTP 400).
type BadRequestError struct {
	Message string
	Body    any
	// NotANumber is set when the stored value of the key is not numeric.
	NotANumber bool
}

func (e *BadRequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return FormatBody(e.Body)
}

// Is implements errors.Is for sentinel error matching.
func (e *BadRequestError) Is(target error) bool {
	if target == ErrBadRequest {
		return true
	}
	return e.NotANumber && target == ErrNotANumber
}

// HTTPError represents any response status that is not otherwise classified.
type HTTPError struct {
	StatusCode int
	Body       any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Something went wrong, API didn't return valid json. (Status: %d)\n\n%s",
		e.StatusCode, FormatBody(e.Body))
}

// Is implements errors.Is for sentinel error matching.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError indicates a response body that could not be decoded.
type DecodeError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode response (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("decode response (status %d)", e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// ValidationError reports an argument rejected before any request was sent.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Unwrap returns the sentinel describing the validation failure.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FormatBody renders a decoded response body for error messages. Strings are
// returned unchanged, everything else is rendered as compact JSON.
func FormatBody(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Sprint(body)
	}
	return string(data)
}
