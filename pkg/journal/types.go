package journal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned when an operation is attempted on a closed journal.
var ErrClosed = errors.New("journal is closed")

var errNilEntry = errors.New("entry cannot be nil")

// Entry is a single token usage event.
type Entry struct {
	// ID is the unique event identifier (UUID)
	ID string `json:"id"`

	// RequestID correlates the entry with the HTTP request that produced it
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is when the usage occurred
	Timestamp time.Time `json:"timestamp"`

	// Operation names what consumed the tokens (e.g., "text_formatting")
	Operation string `json:"operation"`

	// Model is the model that served the request
	Model string `json:"model,omitempty"`

	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total charged against the quota
	TotalTokens int `json:"total_tokens"`
}

// DailySummary aggregates usage for one calendar day.
type DailySummary struct {
	// Date is the day in YYYY-MM-DD form
	Date string `json:"date"`

	// Requests is the number of usage events that day
	Requests int `json:"requests"`

	// TotalTokens is the sum of tokens used that day
	TotalTokens int `json:"total_tokens"`
}

// Journal records and queries token usage history.
type Journal interface {
	// Append stores a usage event. Older events beyond the retention
	// limit are discarded.
	Append(ctx context.Context, entry *Entry) error

	// Recent returns the newest entries, most recent first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)

	// DailyTotals returns per-day usage summaries for the last n days,
	// oldest day first.
	DailyTotals(ctx context.Context, days int) ([]DailySummary, error)

	// Close releases journal resources.
	Close() error
}

// StorageError wraps a journal storage failure with its operation name.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("journal %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}
