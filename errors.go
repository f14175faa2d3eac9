package clouddb

import (
	"errors"
	"fmt"

	"github.com/cloud-db/client-go/internal/apierrors"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingToken is returned when no database token is provided.
	ErrMissingToken = apierrors.ErrMissingToken

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = apierrors.ErrClientClosed

	// ErrOnCooldown is returned when the API rate limit is hit.
	ErrOnCooldown = apierrors.ErrOnCooldown

	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = apierrors.ErrNotFound

	// ErrBadRequest is returned when the API rejects the request input.
	ErrBadRequest = apierrors.ErrBadRequest

	// ErrNotANumber is returned when add/subtract targets a key whose value is not numeric.
	ErrNotANumber = apierrors.ErrNotANumber

	// ErrHTTP is returned for any other unexpected response status.
	ErrHTTP = apierrors.ErrHTTP

	// ErrNotInteger is returned when an add/subtract amount is not an integer.
	ErrNotInteger = apierrors.ErrNotInteger

	// ErrDecode is returned when a response body cannot be decoded.
	ErrDecode = apierrors.ErrDecode
)

// CloudDBError is implemented by all SDK errors.
type CloudDBError interface {
	error
	CloudDBError() // marker method
}

// OnCooldownError reports that the token is rate limited. With auto-retry
// enabled it is only returned once the retries are exhausted.
type OnCooldownError struct {
	StatusCode int
	Message    string
	// Attempts is the number of requests sent before giving up.
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

// Retryable reports whether the request may succeed when sent again.
func (e *OnCooldownError) Retryable() bool { return true }

// CloudDBError implements the CloudDBError interface.
func (e *OnCooldownError) CloudDBError() {}

// NotFoundError reports that the requested key does not exist.
type NotFoundError struct {
	// Body is the decoded response body: a map for JSON bodies, a string otherwise.
	Body any
}

func (e *NotFoundError) Error() string {
	return apierrors.FormatBody(e.Body)
}

// Is implements errors.Is for sentinel error matching.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CloudDBError implements the CloudDBError interface.
func (e *NotFoundError) CloudDBError() {}

// BadRequestError reports a request rejected by the API with status 400.
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
	return apierrors.FormatBody(e.Body)
}

// Is implements errors.Is for sentinel error matching.
func (e *BadRequestError) Is(target error) bool {
	if target == ErrBadRequest {
		return true
	}
	return e.NotANumber && target == ErrNotANumber
}

// CloudDBError implements the CloudDBError interface.
func (e *BadRequestError) CloudDBError() {}

// HTTPError represents any response status not classified otherwise.
type HTTPError struct {
	StatusCode int
	Body       any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Something went wrong, API didn't return valid json. (Status: %d)\n\n%s",
		e.StatusCode, apierrors.FormatBody(e.Body))
}

// Is implements errors.Is for sentinel error matching.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// CloudDBError implements the CloudDBError interface.
func (e *HTTPError) CloudDBError() {}

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

// CloudDBError implements the CloudDBError interface.
func (e *NetworkError) CloudDBError() {}

// DecodeError reports a response body that could not be decoded, such as a
// 200 response that does not carry a JSON object.
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

// CloudDBError implements the CloudDBError interface.
func (e *DecodeError) CloudDBError() {}

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

// Unwrap returns the sentinel describing the failure.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CloudDBError implements the CloudDBError interface.
func (e *ValidationError) CloudDBError() {}

// wrapError converts internal API errors to public errors.
// This ensures that errors.As() checks work with the public error types.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var cooldownErr *apierrors.OnCooldownError
	if errors.As(err, &cooldownErr) {
		return &OnCooldownError{
			StatusCode: cooldownErr.StatusCode,
			Message:    cooldownErr.Message,
			Attempts:   cooldownErr.Attempts,
		}
	}

	var notFoundErr *apierrors.NotFoundError
	if errors.As(err, &notFoundErr) {
		return &NotFoundError{Body: notFoundErr.Body}
	}

	var badReqErr *apierrors.BadRequestError
	if errors.As(err, &badReqErr) {
		return &BadRequestError{
			Message:    badReqErr.Message,
			Body:       badReqErr.Body,
			NotANumber: badReqErr.NotANumber,
		}
	}

	var httpErr *apierrors.HTTPError
	if errors.As(err, &httpErr) {
		return &HTTPError{StatusCode: httpErr.StatusCode, Body: httpErr.Body}
	}

	var netErr *apierrors.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	var decodeErr *apierrors.DecodeError
	if errors.As(err, &decodeErr) {
		return &DecodeError{
			StatusCode: decodeErr.StatusCode,
			Body:       decodeErr.Body,
			Err:        decodeErr.Err,
		}
	}

	return err
}
