package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrParse marks a malformed frame or payload. Callers skip the frame.
	ErrParse = errors.New("malformed stream frame")

	// ErrAborted marks a user-initiated cancellation. It is a clean terminal
	// state, not a failure.
	ErrAborted = errors.New("turn aborted")
)

// ConfigurationError reports missing or invalid server configuration, such
// as an absent provider credential. It is raised before any upstream call.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("Missing %s", e.Setting)
}

// UpstreamError is a failure reported by the model provider.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// TransportError is a network failure before any bytes of a response
// arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsAbort reports whether err represents a user cancellation.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// HTTPStatus maps err to the status code returned before streaming starts.
func HTTPStatus(err error) int {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusInternalServerError
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		if upErr.StatusCode >= 400 && upErr.StatusCode < 500 {
			return upErr.StatusCode
		}
		return http.StatusBadGateway
	}

	if errors.Is(err, ErrParse) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// Code returns a short machine-readable name for err's category.
func Code(err error) string {
	var (
		cfgErr *ConfigurationError
		upErr  *UpstreamError
		trErr  *TransportError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "configuration_error"
	case errors.As(err, &upErr):
		return "upstream_error"
	case errors.As(err, &trErr):
		return "transport_error"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case IsAbort(err):
		return "aborted"
	}
	return "internal_error"
}

// FriendlyMessage rewrites provider failures into text fit for an end user.
func FriendlyMessage(err error) string {
	if err == nil {
		return "An unknown error occurred."
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		switch upErr.StatusCode {
		case http.StatusUnauthorized:
			return "Invalid API key or authentication failed. Please check your API key in settings."
		case http.StatusPaymentRequired:
			return "Insufficient credits or payment required."
		case http.StatusTooManyRequests:
			return "Rate limit exceeded. Please try again later."
		}
		if upErr.Message != "" {
			return upErr.Message
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "invalid x-api-key"), strings.Contains(msg, "authentication_error"):
		return "Invalid API key or authentication failed. Please check your API key in settings."
	case strings.Contains(msg, "402"), strings.Contains(msg, "payment"), strings.Contains(msg, "credits"):
		return "Insufficient credits or payment required."
	case strings.Contains(msg, "429"):
		return "Please try again later."
	}

	var trErr *TransportError
	if errors.As(err, &trErr) {
		return "Request failed. Check your connection and try again."
	}
	return msg
}
