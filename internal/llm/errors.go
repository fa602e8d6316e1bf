package llm

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error is the unified error interface returned by provider adapters and the client.
type Error interface {
	error
	Provider() string
	StatusCode() int
	Retryable() bool
	RetryAfter() *time.Duration
}

type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.TrimSpace(e.Message)
}
func (e *ConfigurationError) Provider() string           { return "" }
func (e *ConfigurationError) StatusCode() int            { return 0 }
func (e *ConfigurationError) Retryable() bool            { return false }
func (e *ConfigurationError) RetryAfter() *time.Duration { return nil }

// TransportError wraps network-level failures (connection reset, DNS, EOF).
// These are always retryable.
type TransportError struct {
	Prov string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Prov, e.Err)
}
func (e *TransportError) Provider() string           { return e.Prov }
func (e *TransportError) StatusCode() int            { return 0 }
func (e *TransportError) Retryable() bool            { return true }
func (e *TransportError) RetryAfter() *time.Duration { return nil }
func (e *TransportError) Unwrap() error              { return e.Err }

// HTTPErrorKind classifies provider HTTP failures.
type HTTPErrorKind string

const (
	KindInvalidRequest HTTPErrorKind = "invalid_request"
	KindAuthentication HTTPErrorKind = "authentication"
	KindNotFound       HTTPErrorKind = "not_found"
	KindTimeout        HTTPErrorKind = "timeout"
	KindContextLength  HTTPErrorKind = "context_length"
	KindQuotaExceeded  HTTPErrorKind = "quota_exceeded"
	KindRateLimit      HTTPErrorKind = "rate_limit"
	KindServer         HTTPErrorKind = "server"
	KindUnknown        HTTPErrorKind = "unknown"
)

type HTTPError struct {
	Prov      string
	Kind      HTTPErrorKind
	Status    int
	Message   string
	After     *time.Duration
	retryable bool
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s %s error (status=%d): %s", e.Prov, e.Kind, e.Status, msg)
}
func (e *HTTPError) Provider() string           { return e.Prov }
func (e *HTTPError) StatusCode() int            { return e.Status }
func (e *HTTPError) Retryable() bool            { return e.retryable }
func (e *HTTPError) RetryAfter() *time.Duration { return e.After }

// ErrorFromHTTPStatus maps a provider HTTP status to a classified error.
// Ambiguous 400/422 responses are refined by message hints, since providers
// tunnel domain failures in text.
func ErrorFromHTTPStatus(provider string, statusCode int, message string, retryAfter *time.Duration) error {
	e := &HTTPError{
		Prov:    strings.TrimSpace(provider),
		Status:  statusCode,
		Message: message,
		After:   retryAfter,
	}
	switch statusCode {
	case 400, 422:
		e.Kind = classifyByMessage(message)
	case 401, 403:
		e.Kind = KindAuthentication
	case 404:
		e.Kind = KindNotFound
	case 408:
		e.Kind = KindTimeout
		e.retryable = true
	case 413:
		e.Kind = KindContextLength
	case 429:
		e.Kind = KindRateLimit
		e.retryable = true
	case 500, 502, 503, 504:
		e.Kind = KindServer
		e.retryable = true
	default:
		// Unknown statuses default to retryable.
		e.Kind = KindUnknown
		e.retryable = true
	}
	return e
}

func classifyByMessage(message string) HTTPErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return KindContextLength
	case strings.Contains(lower, "quota") || strings.Contains(lower, "billing"):
		return KindQuotaExceeded
	case strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"):
		return KindNotFound
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid key"):
		return KindAuthentication
	default:
		return KindInvalidRequest
	}
}

// ParseRetryAfter parses a Retry-After header value.
// Supported forms: integer seconds, HTTP-date (RFC 7231).
func ParseRetryAfter(v string, now time.Time) *time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

// IsRetryable reports whether err is a retryable llm error. Errors outside
// the llm taxonomy are treated as transport-level and retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if le, ok := err.(Error); ok {
		return le.Retryable()
	}
	return true
}
