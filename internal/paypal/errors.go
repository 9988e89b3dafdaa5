package paypal

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTokenMiss is returned by a TokenStore that holds no usable token.
	ErrTokenMiss = errors.New("access token not cached")

	// ErrResponseTooLarge is returned when a provider body exceeds the read
	// limit. The body is never relayed in part.
	ErrResponseTooLarge = errors.New("provider response too large")
)

// ConfigError reports a missing or invalid credential. It is raised before
// any provider call is attempted.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("paypal: missing or invalid configuration: %s", e.Field)
}

// AuthError reports a failed token exchange or a bearer token the provider
// refused. Body holds the raw provider response, which is not guaranteed to
// be JSON.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return fmt.Sprintf("paypal: token request failed: %v", e.Err)
	}
	return fmt.Sprintf("paypal: token request failed with status %d", e.StatusCode)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError reports a non-2xx answer (or a transport failure) from an
// order-related provider call.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return fmt.Sprintf("paypal: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("paypal: %s failed with status %d", e.Op, e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotFound reports whether the provider answered 404.
func (e *ProviderError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ValidationError reports a malformed order id or shipping payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
