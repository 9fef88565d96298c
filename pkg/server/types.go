package server

import (
	"encoding/json"
	"net/http"

	"avtolenta/gigaformat/pkg/quota"
)

// FormatRequest is the POST /v1/format request body.
type FormatRequest struct {
	// Text is the raw car listing to format.
	Text string `json:"text"`
}

// FormatResponse is the POST /v1/format success response body.
type FormatResponse struct {
	// FormattedText is the extracted listing in the template form.
	FormattedText string `json:"formatted_text"`

	// Model is the model that served the request.
	Model string `json:"model"`

	// Usage reports token consumption.
	Usage UsageInfo `json:"usage"`

	// Alert is the quota alert level, present when above thresholds.
	Alert quota.AlertLevel `json:"alert,omitempty"`
}

// UsageInfo reports token consumption for a request.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	EstimatedTokens  int `json:"estimated_tokens"`
}

// QuotaResponse is the GET /v1/quota response body.
type QuotaResponse struct {
	Scopes []quota.ScopeStatus `json:"scopes"`
}

// ErrorResponse is the error response body for all endpoints.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Type classifies the error (invalid_request, quota_exceeded,
	// upstream_error, upstream_timeout, internal_error).
	Type string `json:"type"`

	// Scope is the violated quota scope for quota_exceeded errors.
	Scope quota.Scope `json:"scope,omitempty"`

	// Reset is when the violated quota window rolls over, RFC 3339.
	Reset string `json:"reset,omitempty"`
}

// Error type constants.
const (
	ErrTypeInvalidRequest  = "invalid_request"
	ErrTypeQuotaExceeded   = "quota_exceeded"
	ErrTypeUpstreamError   = "upstream_error"
	ErrTypeUpstreamTimeout = "upstream_timeout"
	ErrTypeInternal        = "internal_error"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, detail ErrorDetail) {
	writeJSON(w, status, ErrorResponse{Error: detail})
}
