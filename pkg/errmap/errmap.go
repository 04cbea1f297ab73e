// Package errmap classifies transport failures into a small code taxonomy
// so callers can decide between "surface to the user" and "retry on the
// next poll tick" without string matching.
package errmap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Code classifies high-level error categories for user-facing messages.
type Code string

const (
	CodeCanceled           Code = "canceled"
	CodeTimeout            Code = "timeout"
	CodeDNSError           Code = "dns_error"
	CodeConnectionRefused  Code = "connection_refused"
	CodeConnectionReset    Code = "connection_reset"
	CodeNetworkUnreachable Code = "network_unreachable"
	CodeHTTPStatus         Code = "http_status"
	CodeStreamClosed       Code = "stream_closed"
	CodeUnexpected         Code = "unexpected"
)

// Error carries a code and request context while preserving the original
// cause via Unwrap.
type Error struct {
	Code    Code
	Message string
	Method  string
	URL     string
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = humanize(e.Code, e.cause)
	}
	if e.Method != "" && e.URL != "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, msg)
	}
	if e.URL != "" {
		return fmt.Sprintf("%s: %s", e.URL, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

func humanize(code Code, cause error) string {
	switch code {
	case CodeCanceled:
		return "request was canceled"
	case CodeTimeout:
		return "request timed out"
	case CodeDNSError:
		var dn *net.DNSError
		if errors.As(cause, &dn) && dn.Name != "" {
			return fmt.Sprintf("DNS lookup failed for %q: %s", dn.Name, dn.Err)
		}
		return "DNS lookup failed"
	case CodeConnectionRefused:
		return "connection refused"
	case CodeConnectionReset:
		return "connection reset by peer"
	case CodeNetworkUnreachable:
		return "network unreachable"
	case CodeStreamClosed:
		return "event stream closed"
	}
	if cause != nil {
		return cause.Error()
	}
	return "unexpected error"
}

// Map wraps err with the best-matching code. A nil err maps to nil.
func Map(err error) error {
	if err == nil {
		return nil
	}
	var mapped *Error
	if errors.As(err, &mapped) {
		return err
	}
	return &Error{Code: classify(err), cause: err}
}

// MapRequestError annotates the mapped error with method and URL context.
func MapRequestError(method, url string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: classify(err), Method: method, URL: url, cause: err}
}

// NewHTTPStatus builds the user-facing error for a non-2xx response. When
// the server supplied a structured message it wins; otherwise the generic
// "HTTP <status>" form applies.
func NewHTTPStatus(status int, serverMessage string) error {
	msg := serverMessage
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &Error{Code: CodeHTTPStatus, Message: msg}
}

func classify(err error) Code {
	switch {
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CodeTimeout
	}
	var dn *net.DNSError
	if errors.As(err, &dn) {
		return CodeDNSError
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnectionReset
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return CodeNetworkUnreachable
	}
	return CodeUnexpected
}
