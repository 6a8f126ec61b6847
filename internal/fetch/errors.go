package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind is a coarse error class used in logs and stats.
type Kind string

const (
	KindNone     Kind = ""
	KindTimeout  Kind = "timeout"
	KindNetwork  Kind = "network"
	KindHTTP     Kind = "http"
	KindParse    Kind = "parse"
	KindCanceled Kind = "canceled"
	KindUnknown  Kind = "unknown"
)

// TimeoutError means the per-call deadline fired before the exchange finished.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %v", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError covers DNS, dial and connection failures.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a completed exchange with a non-2xx status.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string // truncated
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// ParseError means the body could not be decoded in the expected format.
type ParseError struct {
	URL    string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from %s: %v", e.Format, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Classify maps any error returned by this package to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var (
		timeoutErr *TimeoutError
		networkErr *NetworkError
		httpErr    *HTTPError
		parseErr   *ParseError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &parseErr):
		return KindParse
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &networkErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// wrapTransport classifies a transport-level failure. callCtx is the
// per-call context so an expired deadline wins over the raw error text.
func wrapTransport(callCtx context.Context, url string, timeout time.Duration, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	return &NetworkError{URL: url, Err: err}
}
