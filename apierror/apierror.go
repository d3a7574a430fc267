// Package apierror defines the error taxonomy shared by every part of the
// Gather client. API, storage and transport failures cross package boundaries
// as *Error values so callers can branch on Kind instead of string matching.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a failure by its cause.
type Kind string

// Error kinds, grouped by retry semantics. Configuration through NotFound are
// permanent and must not be retried. RateLimit, Server, Network and Storage
// are transient.
const (
	KindConfiguration  Kind = "configuration"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindRateLimit      Kind = "rate_limit"
	KindServer         Kind = "server"
	KindNetwork        Kind = "network"
	KindStorage        Kind = "storage"
	KindHTTP           Kind = "http"
)

// Error carries a failure's classification together with whatever the
// provider sent back. StatusCode and Body are zero-valued when the failure
// happened before a response existed.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Body       string
	RetryAfter time.Time
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindServer, KindNetwork, KindStorage:
		return true
	}
	return false
}

// New builds an error without a wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from any error in err's chain. Errors that never
// passed through this package come back as an empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether any error in err's chain is a transient *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// FromResponse maps a non-2xx API response onto the taxonomy. It is the only
// place status codes are interpreted; both the request executor and its tests
// go through it. now anchors the RetryAfter computation for rate limits.
func FromResponse(method, path string, status int, header http.Header, body []byte, now time.Time) *Error {
	e := &Error{
		Message:    messageFromBody(body),
		StatusCode: status,
		Body:       string(body),
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindAuthentication
		if e.Message == "" {
			e.Message = "authentication failed"
		}
	case status == http.StatusForbidden:
		e.Kind = KindAuthorization
		if e.Message == "" {
			e.Message = "access forbidden"
		}
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
		if e.Message == "" {
			e.Message = fmt.Sprintf("%s %s: resource not found", method, path)
		}
	case status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
		if e.Message == "" {
			e.Message = "request validation failed"
		}
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = retryAfter(header, now)
		if e.Message == "" {
			e.Message = "rate limit exceeded"
		}
	case status >= 500:
		e.Kind = KindServer
		if e.Message == "" {
			e.Message = fmt.Sprintf("server error on %s %s", method, path)
		}
	default:
		e.Kind = KindHTTP
		if e.Message == "" {
			e.Message = fmt.Sprintf("unexpected response for %s %s", method, path)
		}
	}
	return e
}

// retryAfter resolves the earliest sensible retry instant: Retry-After in
// seconds wins, then X-RateLimit-Reset as a unix timestamp, then one minute
// from now.
func retryAfter(header http.Header, now time.Time) time.Time {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs) * time.Second)
		}
	}
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil && unix > 0 {
			return time.Unix(unix, 0)
		}
	}
	return now.Add(time.Minute)
}

// messageFromBody pulls a human-readable message out of a JSON error body
// when the provider supplied one.
func messageFromBody(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.ErrorDescription != "":
		return payload.ErrorDescription
	case payload.Message != "":
		return payload.Message
	case payload.Error != "":
		return payload.Error
	}
	return ""
}
