package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredentials is returned before any network call when a key is empty
	ErrMissingCredentials = errors.New("missing credentials: configure archive.org access and secret keys")

	// ErrProxyRequired marks an HTML error page where an API response was expected
	ErrProxyRequired = errors.New("CORS proxy may be required")
)

// CORSErrorMarker appears in every CORSError message
const CORSErrorMarker = "CORS Error"

// TransportError is a network-class failure: the request never produced an HTTP response
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is an upstream non-2xx response
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// ValidationError means a response arrived but its body cannot be trusted
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid response from %s: %s", e.URL, e.Reason)
}

// CORSError is raised when the direct fetch and every fallback proxy failed
type CORSError struct {
	URL      string
	Attempts []error
}

func (e *CORSError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: could not reach %s directly or through fallback proxies; configure a CORS proxy (%s)",
		CORSErrorMarker, e.URL, strings.Join(msgs, "; "))
}

// Unwrap exposes every attempt to errors.Is / errors.As
func (e *CORSError) Unwrap() []error { return e.Attempts }

// IsCORSError reports whether err is (or wraps) a CORSError
func IsCORSError(err error) bool {
	var ce *CORSError
	return errors.As(err, &ce)
}

// IsTransportError reports whether err is (or wraps) a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// truncateBody keeps error messages readable when upstreams return whole pages
func truncateBody(body []byte, max int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
