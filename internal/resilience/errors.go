package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// transient is implemented by errors that know whether a retry can help.
type transient interface {
	Transient() bool
}

// IsTransient reports whether err is worth retrying: a timeout, a DNS
// failure, or a dropped or refused connection. Cancellation is never
// transient. Errors implementing Transient() bool decide for themselves.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped client errors that lost their type.
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var transientPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"net::err_name_not_resolved",
	"net::err_connection_refused",
	"net::err_connection_reset",
	"net::err_timed_out",
}
