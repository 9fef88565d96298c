package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"avtolenta/gigaformat/pkg/formatter"
	"avtolenta/gigaformat/pkg/gigachat"
	"avtolenta/gigaformat/pkg/quota"
)

// FormatterService formats listings.
// *formatter.Service satisfies this interface.
type FormatterService interface {
	FormatWithRequestID(ctx context.Context, text, requestID string) (*formatter.Result, error)
}

// QuotaReporter reports quota usage.
// *quota.Tracker satisfies this interface.
type QuotaReporter interface {
	Status() []quota.ScopeStatus
}

// HealthChecker verifies the upstream API is reachable.
// *gigachat.Client satisfies this interface.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// handleFormat serves POST /v1/format.
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, ErrorDetail{
			Message: "method not allowed",
			Type:    ErrTypeInvalidRequest,
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorDetail{
			Message: fmt.Sprintf("request body exceeds %d bytes", s.maxBodyBytes),
			Type:    ErrTypeInvalidRequest,
		})
		return
	}

	var req FormatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorDetail{
			Message: "request body must be JSON with a text field",
			Type:    ErrTypeInvalidRequest,
		})
		return
	}

	result, err := s.service.FormatWithRequestID(r.Context(), req.Text, GetRequestID(r.Context()))
	if err != nil {
		s.writeFormatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FormatResponse{
		FormattedText: result.FormattedText,
		Model:         result.Model,
		Usage: UsageInfo{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
			EstimatedTokens:  result.EstimatedTokens,
		},
		Alert: result.Alert,
	})
}

// writeFormatError maps formatting failures to HTTP status codes.
func (s *Server) writeFormatError(w http.ResponseWriter, err error) {
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		detail := ErrorDetail{
			Message: exceeded.Error(),
			Type:    ErrTypeQuotaExceeded,
			Scope:   exceeded.Scope,
		}
		if !exceeded.Reset.IsZero() {
			detail.Reset = exceeded.Reset.UTC().Format(time.RFC3339)
			if wait := time.Until(exceeded.Reset); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			}
		}
		writeError(w, http.StatusTooManyRequests, detail)
		return
	}

	if errors.Is(err, formatter.ErrEmptyText) {
		writeError(w, http.StatusBadRequest, ErrorDetail{
			Message: err.Error(),
			Type:    ErrTypeInvalidRequest,
		})
		return
	}

	var rateErr *gigachat.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())+1))
		}
		writeError(w, http.StatusServiceUnavailable, ErrorDetail{
			Message: "the upstream API is rate limiting requests",
			Type:    ErrTypeUpstreamError,
		})
		return
	}

	var timeoutErr *gigachat.TimeoutError
	if errors.As(err, &timeoutErr) {
		writeError(w, http.StatusGatewayTimeout, ErrorDetail{
			Message: "the upstream API did not respond in time",
			Type:    ErrTypeUpstreamTimeout,
		})
		return
	}

	var authErr *gigachat.AuthError
	var apiErr *gigachat.APIError
	var parseErr *gigachat.ParseError
	if errors.As(err, &authErr) || errors.As(err, &apiErr) || errors.As(err, &parseErr) {
		writeError(w, http.StatusBadGateway, ErrorDetail{
			Message: "the upstream API request failed",
			Type:    ErrTypeUpstreamError,
		})
		return
	}

	writeError(w, http.StatusInternalServerError, ErrorDetail{
		Message: "An internal error occurred. Please try again later.",
		Type:    ErrTypeInternal,
	})
}

// handleQuota serves GET /v1/quota.
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, ErrorDetail{
			Message: "method not allowed",
			Type:    ErrTypeInvalidRequest,
		})
		return
	}

	writeJSON(w, http.StatusOK, QuotaResponse{Scopes: s.tracker.Status()})
}

// handleUsage serves GET /v1/usage with recent events and daily totals.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, ErrorDetail{
			Message: "method not allowed",
			Type:    ErrTypeInvalidRequest,
		})
		return
	}

	if s.journal == nil {
		writeError(w, http.StatusNotFound, ErrorDetail{
			Message: "usage journaling is disabled",
			Type:    ErrTypeInvalidRequest,
		})
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 90 {
			writeError(w, http.StatusBadRequest, ErrorDetail{
				Message: "days must be an integer between 1 and 90",
				Type:    ErrTypeInvalidRequest,
			})
			return
		}
		days = parsed
	}

	totals, err := s.journal.DailyTotals(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrorDetail{
			Message: "failed to read usage history",
			Type:    ErrTypeInternal,
		})
		return
	}

	recent, err := s.journal.Recent(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrorDetail{
			Message: "failed to read usage history",
			Type:    ErrTypeInternal,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"daily":  totals,
		"recent": recent,
	})
}

// handleHealthz serves the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz serves the readiness probe. It fails when the upstream
// API is unreachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.health.HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "upstream API unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
