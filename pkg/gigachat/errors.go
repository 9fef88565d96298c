package gigachat

import (
	"fmt"
	"time"
)

// APIError represents a general GigaChat API error.
// It includes the HTTP status code and the response body.
type APIError struct {
	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message or response body
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gigachat error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gigachat error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// AuthError represents an authentication failure.
// This occurs when NGW rejects the client credentials or the API rejects
// the access token (HTTP 401 or 403).
type AuthError struct {
	// Message is the error message from the endpoint
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("gigachat authentication failed: %s", e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
// It includes the retry-after duration if the API provided one.
type RateLimitError struct {
	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the API
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("gigachat rate limit exceeded (retry after %s): %s",
			e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("gigachat rate limit exceeded: %s", e.Message)
}

// TimeoutError represents a request timeout.
type TimeoutError struct {
	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gigachat request timeout after %s", e.Timeout)
}

// ParseError represents a response parsing failure.
type ParseError struct {
	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("gigachat response parse error: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ConfigError represents a client configuration error.
type ConfigError struct {
	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("gigachat configuration error for field %q: %s", e.Field, e.Message)
}
