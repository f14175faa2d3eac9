package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloud-db/client-go/internal/apierrors"
)

const jsonContentType = "application/json"

// handleResponse turns a response into a payload on HTTP 200 or a
// classified error otherwise. name is the key the request targeted.
func handleResponse(status int, contentType string, raw []byte, name string) (map[string]any, error) {
	if status == http.StatusOK {
		return decodePayload(status, raw)
	}

	data, err := jsonOrText(contentType, raw)
	if err != nil {
		// Mislabelled bodies still classify by status.
		data = string(raw)
	}
	return nil, classify(status, data, name)
}

// classify maps a non-200 response to the Cloud-DB error taxonomy. data is
// the decoded body: a JSON value for JSON responses, a string otherwise.
func classify(status int, data any, name string) error {
	msg, hasMsg := messageOf(data)

	if status == http.StatusForbidden || (hasMsg && strings.Contains(msg, "Cooldown")) {
		if !hasMsg {
			msg = apierrors.FormatBody(data)
		}
		return &apierrors.OnCooldownError{StatusCode: status, Message: msg}
	}

	switch status {
	case http.StatusNotFound:
		return &apierrors.NotFoundError{Body: data}
	case http.StatusBadRequest:
		if hasMsg && msg == apierrors.NotANumberMessage {
			return &apierrors.BadRequestError{
				Message:    fmt.Sprintf("The value of \"%s\" is not a number", name),
				Body:       data,
				NotANumber: true,
			}
		}
		return &apierrors.BadRequestError{Body: data}
	default:
		return &apierrors.HTTPError{StatusCode: status, Body: data}
	}
}

// jsonOrText decodes raw as JSON when the declared content type is JSON and
// returns it as text otherwise.
func jsonOrText(contentType string, raw []byte) (any, error) {
	if !isJSON(contentType) {
		return string(raw), nil
	}
	var data any
	if err := unmarshalJSON(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// decodePayload parses a successful response body, which must be a JSON object.
func decodePayload(status int, raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := unmarshalJSON(raw, &payload); err != nil {
		return nil, &apierrors.DecodeError{StatusCode: status, Body: raw, Err: err}
	}
	if payload == nil {
		return nil, &apierrors.DecodeError{StatusCode: status, Body: raw, Err: errors.New("expected a JSON object")}
	}
	return payload, nil
}

func unmarshalJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func messageOf(data any) (string, bool) {
	obj, ok := data.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := obj["message"].(string)
	return msg, ok
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.EqualFold(strings.TrimSpace(contentType), jsonContentType)
}

// ErrorKind returns a short label for err, used for metrics.
func ErrorKind(err error) string {
	var (
		cooldown   *apierrors.OnCooldownError
		notFound   *apierrors.NotFoundError
		badRequest *apierrors.BadRequestError
		httpErr    *apierrors.HTTPError
		netErr     *apierrors.NetworkError
		decodeErr  *apierrors.DecodeError
	)
	switch {
	case errors.As(err, &cooldown):
		return "cooldown"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &badRequest):
		return "bad_request"
	case errors.As(err, &httpErr):
		return "http"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "other"
	}
}
