// Package server provides the HTTP API for the gigaformat service.
//
// # Endpoints
//
//   - POST /v1/format       formats a car listing through GigaChat
//   - GET  /v1/quota        reports current token quota usage
//   - GET  /v1/usage        reports recent usage history
//   - GET  /healthz         liveness probe
//   - GET  /readyz          readiness probe (checks the upstream API)
//   - GET  /metrics         Prometheus metrics (when enabled)
//
// Quota denials map to HTTP 429 with the violated scope and reset time in
// the body, so clients can tell a per-request overflow from an exhausted
// daily or monthly budget.
//
// Requests flow through a middleware chain: recovery (outermost), request
// ID assignment, and structured request logging.
package server
