package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrResponseTooLarge is returned when an upstream body exceeds the limit.
var ErrResponseTooLarge = errors.New("upstream response body too large")

// TransportError reports that the upstream could not be reached or did not
// deliver a complete response (DNS failure, connection refused, timeout).
type TransportError struct {
	Op  string // "build", "send" or "read"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("proxy %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Code returns a stable machine-readable error code.
func (e *TransportError) Code() string {
	var dnsErr *net.DNSError
	switch {
	case e.Timeout():
		return "upstream_timeout"
	case errors.As(e.Err, &dnsErr):
		return "upstream_dns_failure"
	case errors.Is(e.Err, ErrResponseTooLarge):
		return "upstream_response_too_large"
	default:
		return "upstream_unreachable"
	}
}
