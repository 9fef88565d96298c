package gigachat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// ============================================================================
// Test Helpers
// ============================================================================

// fakeGigaChat is an in-process stand-in for the NGW auth endpoint and the
// GigaChat API, backed by httptest.
type fakeGigaChat struct {
	auth *httptest.Server
	api  *httptest.Server

	authCalls atomic.Int64
	apiCalls  atomic.Int64

	// token issued by the auth endpoint
	token string

	// expiresAt returned by the auth endpoint (ms epoch)
	expiresAt int64

	// completionHandler overrides the default completions response
	completionHandler http.HandlerFunc
}

func newFakeGigaChat(t *testing.T) *fakeGigaChat {
	t.Helper()

	f := &fakeGigaChat{
		token:     "test-access-token",
		expiresAt: time.Now().Add(30 * time.Minute).UnixMilli(),
	}

	f.auth = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.authCalls.Add(1)

		user, pass, ok := r.BasicAuth()
		if !ok || user == "" || pass == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		if r.Header.Get("RqUID") == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"missing RqUID"}`))
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": f.token,
			"expires_at":   f.expiresAt,
		})
	}))
	t.Cleanup(f.auth.Close)

	f.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)

		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid token"}`))
			return
		}

		if f.completionHandler != nil {
			f.completionHandler(w, r)
			return
		}

		json.NewEncoder(w).Encode(CompletionResponse{
			Choices: []Choice{{
				Message:      Message{Role: RoleAssistant, Content: "Лада Веста, 2021 год"},
				FinishReason: "stop",
			}},
			Usage: TokenUsage{PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160},
			Model: "GigaChat:latest",
		})
	}))
	t.Cleanup(f.api.Close)

	return f
}

func (f *fakeGigaChat) clientConfig() Config {
	return Config{
		AuthURL:      f.auth.URL,
		BaseURL:      f.api.URL,
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
}

func newTestClient(t *testing.T, f *fakeGigaChat) *Client {
	t.Helper()

	client, err := NewClient(f.clientConfig())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testRequest() *CompletionRequest {
	return &CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a car listing formatter."},
			{Role: RoleUser, Content: "Продам ладу весту 2021 пробег 40т"},
		},
	}
}

// ============================================================================
// Configuration Tests
// ============================================================================

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{ClientSecret: "secret"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "client_id" {
		t.Errorf("Expected ConfigError for client_id, got %v", err)
	}

	_, err = NewClient(Config{ClientID: "id"})
	if !errors.As(err, &cfgErr) || cfgErr.Field != "client_secret" {
		t.Errorf("Expected ConfigError for client_secret, got %v", err)
	}
}

func TestNewClient_AppliesDefaults(t *testing.T) {
	client, err := NewClient(Config{ClientID: "id", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if client.config.AuthURL != DefaultAuthURL {
		t.Errorf("Expected default auth URL, got %s", client.config.AuthURL)
	}
	if client.config.BaseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %s", client.config.BaseURL)
	}
	if client.config.OAuthScope != DefaultOAuthScope {
		t.Errorf("Expected default scope, got %s", client.config.OAuthScope)
	}
	if client.config.Model != DefaultModel {
		t.Errorf("Expected default model, got %s", client.config.Model)
	}
	if client.config.MaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", client.config.MaxRetries)
	}
}

// ============================================================================
// Completion Tests
// ============================================================================

func TestComplete_Success(t *testing.T) {
	fake := newFakeGigaChat(t)
	client := newTestClient(t, fake)

	resp, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content() != "Лада Веста, 2021 год" {
		t.Errorf("Unexpected content: %q", resp.Content())
	}
	if resp.Usage.TotalTokens != 160 {
		t.Errorf("Expected 160 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestComplete_UsesConfiguredModel(t *testing.T) {
	fake := newFakeGigaChat(t)

	var gotModel string
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		json.NewEncoder(w).Encode(CompletionResponse{
			Choices: []Choice{{Message: Message{Content: "ok"}}},
		})
	}

	cfg := fake.clientConfig()
	cfg.Model = "GigaChat-Pro"
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if _, err := client.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if gotModel != "GigaChat-Pro" {
		t.Errorf("Expected configured model in request, got %q", gotModel)
	}
}

func TestComplete_RejectsEmptyRequest(t *testing.T) {
	fake := newFakeGigaChat(t)
	client := newTestClient(t, fake)

	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Error("Expected error for nil request")
	}
	if _, err := client.Complete(context.Background(), &CompletionRequest{}); err == nil {
		t.Error("Expected error for request with no messages")
	}
	if fake.apiCalls.Load() != 0 {
		t.Error("Invalid requests should not reach the API")
	}
}

func TestComplete_TokenCached(t *testing.T) {
	fake := newFakeGigaChat(t)
	client := newTestClient(t, fake)

	for i := 0; i < 3; i++ {
		if _, err := client.Complete(context.Background(), testRequest()); err != nil {
			t.Fatalf("Complete %d failed: %v", i, err)
		}
	}

	if got := fake.authCalls.Load(); got != 1 {
		t.Errorf("Expected 1 auth call for 3 completions, got %d", got)
	}
}

func TestComplete_RefreshesExpiredToken(t *testing.T) {
	fake := newFakeGigaChat(t)
	// Token already expired; every completion must re-authenticate.
	fake.expiresAt = time.Now().Add(-time.Minute).UnixMilli()
	client := newTestClient(t, fake)

	if _, err := client.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := client.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if got := fake.authCalls.Load(); got != 2 {
		t.Errorf("Expected 2 auth calls for expired tokens, got %d", got)
	}
}

func TestComplete_RetriesAfterRevokedToken(t *testing.T) {
	fake := newFakeGigaChat(t)
	client := newTestClient(t, fake)

	// Prime the token cache.
	if _, err := client.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// Revoke the cached token server-side. The client should refresh and
	// retry without surfacing an error.
	fake.token = "rotated-token"

	if _, err := client.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete after token rotation failed: %v", err)
	}
	if got := fake.authCalls.Load(); got != 2 {
		t.Errorf("Expected re-auth after rejection, got %d auth calls", got)
	}
}

func TestComplete_RateLimitError(t *testing.T) {
	fake := newFakeGigaChat(t)
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"too many requests"}`))
	}
	client := newTestClient(t, fake)

	_, err := client.Complete(context.Background(), testRequest())

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rateErr.RetryAfter != 30*time.Second {
		t.Errorf("Expected retry-after 30s, got %s", rateErr.RetryAfter)
	}
	if fake.apiCalls.Load() != 1 {
		t.Errorf("Rate limit errors must not be retried, got %d calls", fake.apiCalls.Load())
	}
}

func TestComplete_BadRequestNotRetried(t *testing.T) {
	fake := newFakeGigaChat(t)
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"bad payload"}`))
	}
	client := newTestClient(t, fake)

	_, err := client.Complete(context.Background(), testRequest())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", apiErr.StatusCode)
	}
	if fake.apiCalls.Load() != 1 {
		t.Errorf("4xx errors must not be retried, got %d calls", fake.apiCalls.Load())
	}
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	fake := newFakeGigaChat(t)

	var attempts atomic.Int64
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(CompletionResponse{
			Choices: []Choice{{Message: Message{Content: "ok"}}},
		})
	}
	client := newTestClient(t, fake)

	resp, err := client.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content() != "ok" {
		t.Errorf("Unexpected content: %q", resp.Content())
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestComplete_EmptyChoicesIsParseError(t *testing.T) {
	fake := newFakeGigaChat(t)
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CompletionResponse{})
	}
	client := newTestClient(t, fake)

	_, err := client.Complete(context.Background(), testRequest())

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError for empty choices, got %v", err)
	}
}

func TestComplete_MalformedJSON(t *testing.T) {
	fake := newFakeGigaChat(t)
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}
	client := newTestClient(t, fake)

	_, err := client.Complete(context.Background(), testRequest())

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
	if parseErr.RawResponse != "not json at all" {
		t.Errorf("Expected raw response preserved, got %q", parseErr.RawResponse)
	}
}

// ============================================================================
// Authentication Tests
// ============================================================================

func TestAuth_InvalidCredentials(t *testing.T) {
	fake := newFakeGigaChat(t)

	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid credentials"}`))
	}))
	defer auth.Close()

	cfg := fake.clientConfig()
	cfg.AuthURL = auth.URL

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	_, err = client.Complete(context.Background(), testRequest())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
}

func TestAuth_EmptyTokenRejected(t *testing.T) {
	fake := newFakeGigaChat(t)
	fake.token = ""
	client := newTestClient(t, fake)

	_, err := client.Complete(context.Background(), testRequest())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError for empty token, got %v", err)
	}
}

// ============================================================================
// Health Tests
// ============================================================================

func TestHealthCheck(t *testing.T) {
	fake := newFakeGigaChat(t)
	client := newTestClient(t, fake)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
	if !client.IsHealthy() {
		t.Error("Expected client healthy after successful check")
	}
}

func TestHealth_MarkedUnhealthyAfterFailures(t *testing.T) {
	fake := newFakeGigaChat(t)
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}

	cfg := fake.clientConfig()
	cfg.MaxRetries = 3
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	// One failure is counted per call, however many retries it took.
	for i := 0; i < 2; i++ {
		client.Complete(context.Background(), testRequest())
		if !client.IsHealthy() {
			t.Fatalf("Expected client still healthy after %d failed calls", i+1)
		}
	}
	client.Complete(context.Background(), testRequest())

	if client.IsHealthy() {
		t.Error("Expected client unhealthy after repeated server errors")
	}

	health := client.GetHealth()
	if health.ConsecutiveFailures < 3 {
		t.Errorf("Expected at least 3 consecutive failures, got %d", health.ConsecutiveFailures)
	}
	if health.FailedRequests == 0 {
		t.Error("Expected failed request counter to be non-zero")
	}
}

func TestHealth_RecoversAfterSuccess(t *testing.T) {
	fake := newFakeGigaChat(t)

	var failing atomic.Bool
	failing.Store(true)
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(CompletionResponse{
			Choices: []Choice{{Message: Message{Content: "ok"}}},
		})
	}

	cfg := fake.clientConfig()
	cfg.MaxRetries = 3
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	for i := 0; i < 3; i++ {
		client.Complete(context.Background(), testRequest())
	}
	if client.IsHealthy() {
		t.Fatal("Expected client unhealthy after failures")
	}

	failing.Store(false)
	if _, err := client.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if !client.IsHealthy() {
		t.Error("Expected client healthy after successful request")
	}
	if got := client.GetHealth().ConsecutiveFailures; got != 0 {
		t.Errorf("Expected failure counter reset, got %d", got)
	}
}

// ============================================================================
// Context Cancellation Tests
// ============================================================================

func TestComplete_ContextCancelled(t *testing.T) {
	fake := newFakeGigaChat(t)
	release := make(chan struct{})
	defer close(release)
	fake.completionHandler = func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client going away.
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}
	client := newTestClient(t, fake)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, testRequest())
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
}

// ============================================================================
// Retry-After Parsing Tests
// ============================================================================

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "45", 45 * time.Second},
		{"zero seconds", "0", 0},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.header); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}
