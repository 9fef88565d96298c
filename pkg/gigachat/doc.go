// Package gigachat implements the HTTP client for the Sber GigaChat API.
//
// The client handles the two-step protocol GigaChat requires: an OAuth
// access token is obtained from the NGW auth endpoint using HTTP Basic
// credentials and a unique RqUID header, then chat completion requests are
// sent with the bearer token. Access tokens are cached and refreshed
// transparently before they expire.
//
// Transient failures (5xx, network errors) are retried with exponential
// backoff. Authentication, rate limit, and malformed-response failures are
// reported through typed errors so callers can react to each condition.
package gigachat
