package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotkit/internal/shared"
)

// RateLimitedError is a 429 response. RetryAfter is zero when the response carried no hint.
type RateLimitedError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

func (e *RateLimitedError) Unwrap() error {
	return shared.ErrServiceUnavailable
}

// TransientServerError is a 500, 502, 503 or 504 response.
type TransientServerError struct {
	Status  int
	Message string
}

func (e *TransientServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error %d", e.Status)
}

func (e *TransientServerError) Unwrap() error {
	return shared.ErrServiceUnavailable
}

// RequestRejectedError is a non-retryable rejection by the API.
type RequestRejectedError struct {
	Status  int
	Message string
}

func (e *RequestRejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request rejected (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request rejected (%d)", e.Status)
}

func (e *RequestRejectedError) Unwrap() error {
	return shared.ErrAPIRequest
}

// PlaybackRejectedError is a rejection carrying a machine-readable playback reason such as NO_ACTIVE_DEVICE.
// [errors.As] also matches it as a [*RequestRejectedError].
type PlaybackRejectedError struct {
	RequestRejectedError
	Reason string
}

func (e *PlaybackRejectedError) Error() string {
	return fmt.Sprintf("playback rejected (%d, %s): %s", e.Status, e.Reason, e.Message)
}

func (e *PlaybackRejectedError) Unwrap() error {
	return &e.RequestRejectedError
}

// TransportError is a failure to complete the HTTP exchange: connection errors, timeouts, unreadable bodies.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is one of the kinds the retry policy retries.
func IsRetryable(err error) bool {
	var (
		rateLimited *RateLimitedError
		transient   *TransientServerError
		transport   *TransportError
	)
	return errors.As(err, &rateLimited) || errors.As(err, &transient) || errors.As(err, &transport)
}

type errorEnvelope struct {
	Error *struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// decodeEnvelope extracts the API's error envelope from body. OAuth-style bodies where "error" is a string
// are not envelopes.
func decodeEnvelope(body []byte) (status int, message, reason string, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' || !bytes.Contains(trimmed, []byte(`"error"`)) {
		return 0, "", "", false
	}

	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Error == nil {
		return 0, "", "", false
	}
	if env.Error.Status == 0 && env.Error.Message == "" {
		return 0, "", "", false
	}
	return env.Error.Status, env.Error.Message, env.Error.Reason, true
}

// parseRetryAfter reads the Retry-After header as integer seconds.
func parseRetryAfter(h http.Header) (time.Duration, bool) {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
