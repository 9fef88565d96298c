package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default endpoints for the production GigaChat deployment.
const (
	DefaultAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultBaseURL = "https://gigachat.devices.sberbank.ru/api/v1"

	// DefaultOAuthScope is the personal-account API scope.
	DefaultOAuthScope = "GIGACHAT_API_PERS"

	// DefaultModel is the model alias used when none is configured.
	DefaultModel = "GigaChat:latest"
)

// Config contains configuration for the GigaChat client.
type Config struct {
	// AuthURL is the NGW OAuth endpoint.
	// Default: DefaultAuthURL
	AuthURL string `yaml:"auth_url"`

	// BaseURL is the API base URL.
	// Default: DefaultBaseURL
	BaseURL string `yaml:"base_url"`

	// ClientID is the OAuth client identifier.
	// Typically loaded from the GIGACHAT_CLIENT_ID environment variable.
	ClientID string `yaml:"client_id"`

	// ClientSecret is the OAuth client secret.
	// Typically loaded from the GIGACHAT_CLIENT_SECRET environment variable.
	ClientSecret string `yaml:"client_secret"`

	// OAuthScope is the API scope requested during authentication.
	// Default: GIGACHAT_API_PERS
	OAuthScope string `yaml:"oauth_scope"`

	// Model is the model identifier for completion requests.
	// Default: GigaChat:latest
	Model string `yaml:"model"`

	// Timeout is the maximum duration for a single HTTP request.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for transient
	// failures.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the base delay between retries, doubled per attempt.
	// Default: 1s
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// InsecureSkipVerify disables TLS certificate verification.
	// The production endpoints present certificates from the Russian
	// Trusted CA, which is absent from most system trust stores.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// TokenRefreshMargin is how long before expiry the access token is
	// refreshed.
	// Default: 60s
	TokenRefreshMargin time.Duration `yaml:"token_refresh_margin"`
}

// Client is the GigaChat API client.
//
// It obtains and caches the OAuth access token, retries transient
// failures with exponential backoff, and tracks endpoint health.
// Client is safe for concurrent use.
type Client struct {
	config Config

	// httpClient is the HTTP client with connection pooling
	httpClient *http.Client

	// token is the cached OAuth access token
	token   accessToken
	tokenMu sync.Mutex

	// health tracks the endpoint's health status
	health   ClientHealth
	healthMu sync.RWMutex
}

// NewClient creates a GigaChat client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, &ConfigError{Field: "client_id", Message: "cannot be empty"}
	}
	if cfg.ClientSecret == "" {
		return nil, &ConfigError{Field: "client_secret", Message: "cannot be empty"}
	}

	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.OAuthScope == "" {
		cfg.OAuthScope = DefaultOAuthScope
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.TokenRefreshMargin == 0 {
		cfg.TokenRefreshMargin = time.Minute
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		health: ClientHealth{
			IsHealthy: true, // Start optimistic
			LastCheck: time.Now(),
		},
	}, nil
}

// Complete sends a chat completion request and returns the response.
//
// The request's Model field defaults to the configured model when empty.
// An expired or rejected access token is refreshed transparently; 5xx and
// network failures are retried with exponential backoff up to the
// configured attempt count.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, &APIError{Message: "request cannot be nil"}
	}
	if len(req.Messages) == 0 {
		return nil, &APIError{Message: "request must contain at least one message"}
	}
	if req.Model == "" {
		req.Model = c.config.Model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.doWithAuth(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var resp CompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &ParseError{
			RawResponse: string(respBody),
			Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &ParseError{
			RawResponse: string(respBody),
			Cause:       fmt.Errorf("response contains no choices"),
		}
	}

	return &resp, nil
}

// HealthCheck verifies the API is reachable by listing available models.
// Returns nil if the endpoint responds, or an error describing the issue.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.doWithAuth(ctx, http.MethodGet, c.config.BaseURL+"/models", nil)
	return err
}

// IsHealthy returns the current health status.
func (c *Client) IsHealthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health.IsHealthy
}

// GetHealth returns detailed health information.
func (c *Client) GetHealth() ClientHealth {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

// Close releases idle HTTP connections.
// After calling Close, the client should not be used.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doWithAuth performs an authenticated API request, refreshing the access
// token once if the API rejects it.
func (c *Client) doWithAuth(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	respBody, err := c.doRequest(ctx, method, url, body, token)

	// A 401 on a cached token means it was revoked before its expiry;
	// refresh once and retry.
	var authErr *AuthError
	if errors.As(err, &authErr) {
		c.invalidateToken()

		token, tokenErr := c.getAccessToken(ctx)
		if tokenErr != nil {
			return nil, tokenErr
		}
		respBody, err = c.doRequest(ctx, method, url, body, token)
	}

	return respBody, err
}

// getAccessToken returns a valid access token, requesting a new one from
// NGW when the cached token is missing or about to expire.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token.valid(time.Now(), c.config.TokenRefreshMargin) {
		return c.token.value, nil
	}

	form := url.Values{}
	form.Set("scope", c.config.OAuthScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}

	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("RqUID", uuid.NewString())

	slog.Debug("requesting gigachat access token", "auth_url", c.config.AuthURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &TimeoutError{Timeout: c.config.Timeout}
		}
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ParseError{Cause: fmt.Errorf("failed to read auth response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", &AuthError{Message: string(respBody)}
		}
		return "", &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var oauth oauthResponse
	if err := json.Unmarshal(respBody, &oauth); err != nil {
		return "", &ParseError{
			RawResponse: string(respBody),
			Cause:       fmt.Errorf("failed to unmarshal auth response: %w", err),
		}
	}
	if oauth.AccessToken == "" {
		return "", &AuthError{Message: "auth response contains no access token"}
	}

	c.token = accessToken{
		value:     oauth.AccessToken,
		expiresAt: time.UnixMilli(oauth.ExpiresAt),
	}

	return c.token.value, nil
}

// invalidateToken discards the cached access token.
func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = accessToken{}
}

// doRequest performs an HTTP request with retry logic for transient
// failures. Authentication, rate limit, and 4xx errors are not retried.
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte, token string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.config.RetryBackoff
			slog.Debug("retrying gigachat request",
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.recordRequest(false)

			if ctx.Err() != nil {
				// Context cancelled or timeout - don't retry
				return nil, &TimeoutError{Timeout: c.config.Timeout}
			}

			slog.Warn("gigachat request failed, will retry",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if readErr != nil {
				return nil, &ParseError{Cause: fmt.Errorf("failed to read response: %w", readErr)}
			}
			c.recordRequest(true)
			c.updateHealth(true, nil)
			return respBody, nil
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			c.recordRequest(false)
			c.updateHealth(false, fmt.Errorf("authentication failed"))
			return nil, &AuthError{Message: string(respBody)}

		case http.StatusTooManyRequests:
			c.recordRequest(false)
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			return nil, &RateLimitError{
				RetryAfter: retryAfter,
				Message:    string(respBody),
			}

		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			c.recordRequest(false)
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(respBody),
			}

		default:
			// Server error (5xx) - retry
			lastErr = &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(respBody),
			}
			c.recordRequest(false)

			slog.Warn("gigachat returned error status, will retry",
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	// All retries exhausted
	c.updateHealth(false, lastErr)
	return nil, lastErr
}

// updateHealth updates the endpoint's health status.
func (c *Client) updateHealth(success bool, err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.LastCheck = time.Now()

	if success {
		c.health.IsHealthy = true
		c.health.ConsecutiveFailures = 0
		c.health.LastError = nil
	} else {
		c.health.ConsecutiveFailures++
		c.health.LastError = err

		// Mark unhealthy after 3 consecutive failures
		if c.health.ConsecutiveFailures >= 3 {
			c.health.IsHealthy = false
			slog.Warn("gigachat endpoint marked unhealthy",
				"consecutive_failures", c.health.ConsecutiveFailures,
				"error", err,
			)
		}
	}
}

// recordRequest records request counters.
func (c *Client) recordRequest(success bool) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.TotalRequests++
	if !success {
		c.health.FailedRequests++
	}
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	// Try parsing as seconds
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
