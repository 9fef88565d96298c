package gigachat

import "time"

// Message roles understood by the GigaChat API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// CompletionRequest is a chat completion request in the GigaChat wire
// format, which follows the OpenAI chat schema.
type CompletionRequest struct {
	// Model is the model identifier (e.g., "GigaChat:latest")
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Choice is a single completion alternative in a response.
type Choice struct {
	// Message is the generated message
	Message Message `json:"message"`

	// FinishReason explains why generation stopped ("stop", "length", ...)
	FinishReason string `json:"finish_reason"`

	// Index is the choice position
	Index int `json:"index"`
}

// TokenUsage tracks token consumption for a request.
// The total is what gets charged against the quota.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// CompletionResponse is a chat completion response.
type CompletionResponse struct {
	// Choices contains the generated alternatives (usually one)
	Choices []Choice `json:"choices"`

	// Usage contains token consumption information
	Usage TokenUsage `json:"usage"`

	// Model is the model that produced the response
	Model string `json:"model"`

	// Created is the Unix timestamp of response creation
	Created int64 `json:"created"`
}

// Content returns the text of the first choice, or empty when the
// response carries no choices.
func (r *CompletionResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// oauthResponse is the NGW auth endpoint response.
// ExpiresAt is a Unix timestamp in milliseconds.
type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// accessToken is a cached OAuth token with its expiry.
type accessToken struct {
	value     string
	expiresAt time.Time
}

// valid reports whether the token can still be used at time now,
// keeping margin as a refresh buffer before the actual expiry.
func (t accessToken) valid(now time.Time, margin time.Duration) bool {
	return t.value != "" && now.Before(t.expiresAt.Add(-margin))
}

// ClientHealth tracks the health status of the GigaChat endpoint.
type ClientHealth struct {
	// IsHealthy indicates if the endpoint is currently considered healthy
	IsHealthy bool

	// LastCheck is when the health status was last updated
	LastCheck time.Time

	// ConsecutiveFailures counts failures since the last success
	ConsecutiveFailures int

	// LastError is the most recent error (nil if healthy)
	LastError error

	// TotalRequests is the number of requests sent
	TotalRequests int64

	// FailedRequests is the number of failed requests
	FailedRequests int64
}
