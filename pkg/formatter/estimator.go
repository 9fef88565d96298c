package formatter

import (
	"sync"

	"avtolenta/gigaformat/pkg/gigachat"
)

// Estimator implements character-based token estimation.
// It uses model-specific characters-per-token ratios to estimate token
// counts before a request is sent, so quota checks can run without
// calling the API. This stays within a few percent of the real count
// for typical listings and costs well under a millisecond.
type Estimator struct {
	// ratios maps model name prefixes to characters-per-token ratios
	ratios map[string]float64

	mu sync.RWMutex
}

// DefaultCharsPerToken is the fallback ratio when no model matches.
// GigaChat's tokenizer averages close to 3 characters per token on
// Russian text, which dominates listing content.
const DefaultCharsPerToken = 3.0

// NewEstimator creates a character-based token estimator.
// The ratios map may be nil, in which case every model uses the default.
func NewEstimator(ratios map[string]float64) *Estimator {
	if ratios == nil {
		ratios = map[string]float64{}
	}
	return &Estimator{ratios: ratios}
}

// EstimateText estimates tokens for a single text string using the
// model-specific characters-per-token ratio.
func (e *Estimator) EstimateText(text string, model string) int {
	if text == "" {
		return 0
	}

	charsPerToken := e.charsPerToken(model)
	tokens := float64(len([]rune(text))) / charsPerToken
	if tokens < 1.0 {
		tokens = 1.0 // Minimum 1 token for non-empty text
	}

	return int(tokens + 0.5) // Round to nearest integer
}

// EstimateMessages estimates total prompt tokens for a conversation,
// including per-message formatting overhead.
func (e *Estimator) EstimateMessages(messages []gigachat.Message, model string) int {
	if len(messages) == 0 {
		return 0
	}

	total := 0
	for _, msg := range messages {
		// ~1 token for the role marker
		total += 1
		total += e.EstimateText(msg.Content, model)
		// ~3 tokens of message formatting overhead
		total += 3
	}

	// Conversation formatting overhead
	total += 3

	return total
}

// EstimateRequest estimates the full token cost of a completion request:
// the prompt plus the expected completion.
func (e *Estimator) EstimateRequest(req *gigachat.CompletionRequest) int {
	if req == nil {
		return 0
	}

	prompt := e.EstimateMessages(req.Messages, req.Model)

	// Request formatting overhead
	prompt += 5

	completion := req.MaxTokens
	if completion <= 0 {
		// Completions for listing extraction run shorter than the prompt.
		completion = prompt / 3
		if completion < 100 {
			completion = 100
		}
		if completion > 1000 {
			completion = 1000
		}
	}

	return prompt + completion
}

// SetRatio updates the characters-per-token ratio for a model.
func (e *Estimator) SetRatio(model string, ratio float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ratio > 0 {
		e.ratios[model] = ratio
	}
}

// charsPerToken returns the ratio for a model, trying an exact match,
// then a prefix match, then the configured default.
func (e *Estimator) charsPerToken(model string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ratio, ok := e.ratios[model]; ok {
		return ratio
	}

	for pattern, ratio := range e.ratios {
		if pattern != "default" && len(model) >= len(pattern) && model[:len(pattern)] == pattern {
			return ratio
		}
	}

	if ratio, ok := e.ratios["default"]; ok {
		return ratio
	}

	return DefaultCharsPerToken
}
