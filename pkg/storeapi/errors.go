package storeapi

import "errors"

var (
	// ErrUnauthorized is returned on 401; the bearer token was rejected
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned on 404
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on 409, e.g. a duplicate email on sign-up
	ErrConflict = errors.New("conflict")

	// ErrInvalidRequest is returned on 400 and 422
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrServerError is returned on any 5xx status
	ErrServerError = errors.New("server error")

	// ErrNetworkUnreachable is returned when the request never got a response
	ErrNetworkUnreachable = errors.New("network unreachable")

	// ErrUnexpectedResponse is returned when a response does not match the endpoint's shape
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrMissingToken is returned when an authenticated call is made without a token
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidConfig is returned by NewClient for unusable configuration
	ErrInvalidConfig = errors.New("invalid client configuration")
)

// Retryable reports whether a failed idempotent request may be attempted again.
func Retryable(err error) bool {
	return errors.Is(err, ErrServerError) || errors.Is(err, ErrNetworkUnreachable)
}
