package client

import "errors"

var (
	// ErrNotFound is returned for a 404 from the storefront API.
	ErrNotFound = errors.New("resource not found")
	// ErrHTTPStatus is returned for any other non-2xx response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnavailable is returned while the circuit breaker rejects requests.
	ErrUnavailable = errors.New("storefront API unavailable")
)
