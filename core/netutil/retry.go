// Package netutil classifies transport errors shared by the chat platform clients.
package netutil

import (
	"errors"
	"net"
	"net/http"
)

// ShouldRetry reports whether err is a transient network failure: a timeout
// anywhere in the chain or a failed dial. API-level errors are left to the
// caller that knows the platform.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// RetryableStatus reports whether an HTTP status indicates throttling or a server-side fault.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
