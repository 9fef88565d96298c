package formatter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"avtolenta/gigaformat/pkg/gigachat"
	"avtolenta/gigaformat/pkg/journal"
	"avtolenta/gigaformat/pkg/quota"
)

// ErrEmptyText is returned when the listing text is empty or whitespace.
var ErrEmptyText = errors.New("listing text cannot be empty")

// CompletionClient sends chat completion requests.
// *gigachat.Client satisfies this interface.
type CompletionClient interface {
	Complete(ctx context.Context, req *gigachat.CompletionRequest) (*gigachat.CompletionResponse, error)
}

// QuotaTracker guards token spending.
// *quota.Tracker satisfies this interface.
type QuotaTracker interface {
	CanSpend(tokens int) (*quota.Decision, error)
	Record(ctx context.Context, tokens int) error
}

// Result is the outcome of a formatting request.
type Result struct {
	// FormattedText is the extracted listing in the template form
	FormattedText string `json:"formatted_text"`

	// Usage is the token consumption reported by the API
	Usage gigachat.TokenUsage `json:"usage"`

	// EstimatedTokens is the pre-flight estimate checked against the quota
	EstimatedTokens int `json:"estimated_tokens"`

	// Model is the model that served the request
	Model string `json:"model"`

	// Alert is the quota alert level after recording usage
	Alert quota.AlertLevel `json:"alert,omitempty"`

	// Duration is the end-to-end processing time
	Duration time.Duration `json:"-"`
}

// Service orchestrates listing formatting: estimate, quota check, API
// call, usage recording, journaling.
type Service struct {
	client    CompletionClient
	tracker   QuotaTracker
	estimator *Estimator
	journal   journal.Journal
	logger    *slog.Logger
	metrics   *Metrics

	// temperature for completion requests
	temperature float64

	// maxTokens caps the completion length
	maxTokens int
}

// Option configures a Service.
type Option func(*Service)

// WithJournal sets the usage journal. Without one, usage history is not
// recorded.
func WithJournal(j journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEstimator replaces the token estimator.
func WithEstimator(e *Estimator) Option {
	return func(s *Service) { s.estimator = e }
}

// WithTemperature sets the sampling temperature.
// Default: 0.7
func WithTemperature(t float64) Option {
	return func(s *Service) { s.temperature = t }
}

// WithMaxTokens caps the completion length.
// Default: 2000
func WithMaxTokens(n int) Option {
	return func(s *Service) { s.maxTokens = n }
}

// NewService creates a formatting service.
func NewService(client CompletionClient, tracker QuotaTracker, opts ...Option) *Service {
	s := &Service{
		client:      client,
		tracker:     tracker,
		estimator:   NewEstimator(nil),
		logger:      slog.Default().With("component", "formatter"),
		temperature: 0.7,
		maxTokens:   2000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Format sends a car listing through GigaChat and returns the structured
// result.
//
// The token cost is estimated and checked against the quota before the
// API is called; a denied request returns *quota.ExceededError and costs
// nothing. Actual usage reported by the API is recorded afterwards and
// appended to the journal.
func (s *Service) Format(ctx context.Context, text string) (*Result, error) {
	return s.format(ctx, text, "")
}

// FormatWithRequestID is Format with a request ID for journal correlation.
func (s *Service) FormatWithRequestID(ctx context.Context, text, requestID string) (*Result, error) {
	return s.format(ctx, text, requestID)
}

func (s *Service) format(ctx context.Context, text, requestID string) (*Result, error) {
	start := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		s.count("invalid")
		return nil, ErrEmptyText
	}

	req := &gigachat.CompletionRequest{
		Messages: []gigachat.Message{
			{Role: gigachat.RoleSystem, Content: SystemPrompt},
			{Role: gigachat.RoleUser, Content: text},
		},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}

	// Estimate the completion from the prompt length rather than the
	// configured cap. MaxTokens is a ceiling, not an expectation, and
	// charging the full cap up front would deny every request against
	// the per-request limit.
	estimateReq := *req
	estimateReq.MaxTokens = 0
	estimate := s.estimator.EstimateRequest(&estimateReq)

	decision, err := s.tracker.CanSpend(estimate)
	if err != nil {
		s.count("invalid")
		return nil, err
	}
	if !decision.Allowed {
		s.count("denied")
		s.logger.Warn("formatting request denied by quota",
			"scope", decision.Scope,
			"estimated_tokens", estimate,
			"used", decision.Used,
			"limit", decision.Limit,
		)
		return nil, &quota.ExceededError{
			Scope:     decision.Scope,
			Requested: estimate,
			Used:      decision.Used,
			Limit:     decision.Limit,
			Reset:     decision.Reset,
		}
	}

	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		s.count("failed")
		return nil, err
	}

	actual := resp.Usage.TotalTokens
	if actual == 0 {
		// The API occasionally omits usage; charge the estimate so the
		// quota never under-counts.
		actual = estimate
	}

	alert := quota.AlertNone
	if err := s.tracker.Record(ctx, actual); err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			// The response already exists; deliver it but flag that the
			// actual usage overran the remaining budget.
			alert = quota.AlertCritical
			s.logger.Warn("actual usage exceeded remaining quota",
				"scope", exceeded.Scope,
				"actual_tokens", actual,
				"estimated_tokens", estimate,
			)
		} else {
			s.count("failed")
			return nil, err
		}
	} else if after, err := s.tracker.CanSpend(0); err == nil {
		alert = after.Alert
	}

	s.appendJournal(ctx, resp, requestID)

	duration := time.Since(start)
	s.count("formatted")
	if s.metrics != nil {
		s.metrics.Duration.Observe(duration.Seconds())
		s.metrics.TokensUsed.Observe(float64(actual))
		s.metrics.EstimateError.Observe(float64(estimate - actual))
	}

	s.logger.Info("listing formatted",
		"request_id", requestID,
		"estimated_tokens", estimate,
		"actual_tokens", actual,
		"duration", duration,
	)

	return &Result{
		FormattedText:   resp.Content(),
		Usage:           resp.Usage,
		EstimatedTokens: estimate,
		Model:           resp.Model,
		Alert:           alert,
		Duration:        duration,
	}, nil
}

// appendJournal records the usage event, best effort.
func (s *Service) appendJournal(ctx context.Context, resp *gigachat.CompletionResponse, requestID string) {
	if s.journal == nil {
		return
	}

	err := s.journal.Append(ctx, &journal.Entry{
		RequestID:        requestID,
		Operation:        "text_formatting",
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	})
	if err != nil {
		s.logger.Warn("failed to journal usage event", "error", err)
	}
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(result).Inc()
	}
}
