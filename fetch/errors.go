package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrTooManyRedirects is returned when a request exceeds the redirect cap.
var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: unexpected status %d", e.URL, e.StatusCode)
}

// BodyTooLargeError reports a response body over the configured limit.
// The body is never truncated and parsed.
type BodyTooLargeError struct {
	URL   string
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("body of %s exceeds %d bytes", e.URL, e.Limit)
}

// StatusCodeOf returns the HTTP status carried by err, or 0 if there is none.
func StatusCodeOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// FailureKind names the cause of a request failure for logs: redirect_limit,
// canceled, timeout, dns, connection_refused, body_too_large, status or
// transport. It returns "" for a nil error.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTooManyRedirects):
		return "redirect_limit"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection_refused"
	}

	var tooLarge *BodyTooLargeError
	if errors.As(err, &tooLarge) {
		return "body_too_large"
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return "status"
	}
	return "transport"
}
