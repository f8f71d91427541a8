package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrOffline indicates a provider is unreachable
	ErrOffline = errors.New("provider is unreachable")

	// ErrLoginRequired indicates the operation needs an authenticated session
	ErrLoginRequired = errors.New("login required")

	// ErrTokenExpired indicates the access token has expired and was not refreshed
	ErrTokenExpired = errors.New("access token expired")

	// ErrStateMismatch indicates an OAuth redirect carried an unknown state value
	ErrStateMismatch = errors.New("state mismatch")
)

// ConfigError reports a missing or invalid configuration field required by
// the attempted operation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("config: %s is not set", e.Field)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// AuthError reports a credential or OAuth flow failure for one provider
type AuthError struct {
	Source Source
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s auth: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s auth: %s", e.Source, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError is surfaced when a provider rejected for quota reasons and
// retries are exhausted. RetryAfter is the provider's hint when it gave one.
type RateLimitError struct {
	Source     Source
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Source)
}

// NetworkError wraps a transport-level failure or timeout
type NetworkError struct {
	Source Source
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network: %v", e.Source, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrOffline }

// ProviderError is a non-2xx business failure with the parsed response body
type ProviderError struct {
	Source Source
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Source, e.Status, e.Body)
}

// NotFoundError reports an absent entity with enough context to name it
type NotFoundError struct {
	Source Source
	Kind   string // "media", "user", "entry", ...
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %q not found", e.Source, e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CapabilityError reports an operation the provider does not support
type CapabilityError struct {
	Source    Source
	Operation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Source, e.Operation)
}

// ValidationError reports a violated precondition on caller input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseError reports a malformed provider response
type ParseError struct {
	Source Source
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsAuthFailure reports whether err represents an authentication failure
// (invalid, expired, or missing credentials, or a provider 401).
func IsAuthFailure(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Status == 401 {
		return true
	}
	return errors.Is(err, ErrLoginRequired) || errors.Is(err, ErrTokenExpired)
}

// IsRateLimited reports whether err is a quota rejection
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Status == 429
}

// IsRetriable reports whether the queue may retry the failed call: 5xx,
// transport errors, timeouts, 429, and 401 (the latter bounded separately
// by the auth retry budget). Other 4xx and cancellations are final.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrOffline) {
		return true
	}
	// Typed provider failures decide before the transport check: a
	// url.Error satisfies net.Error even when it wraps a final 4xx.
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status >= 500 || pe.Status == 429 || pe.Status == 401
	}
	if IsRateLimited(err) || IsAuthFailure(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
