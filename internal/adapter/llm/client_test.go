package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/convo/internal/logger"
)

func TestClientCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt", req.Model)
		require.NotNil(t, req.Temperature)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer server.Close()

	temp := 0.3
	client := NewClient(server.URL+"/", "sk-test", time.Second)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:       "gpt",
		Temperature: &temp,
		Messages:    []ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content())
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 1, resp.Usage.PromptTokens)
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		transient bool
	}{
		{http.StatusBadRequest, `{"error":{"message":"bad","type":"invalid_request_error"}}`, false},
		{http.StatusUnauthorized, `nope`, false},
		{http.StatusRequestTimeout, `slow`, true},
		{http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"rate_limit"}}`, true},
		{http.StatusBadGateway, `upstream`, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "", time.Second).CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "gpt"})
			require.Error(t, err)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", time.Second).CreateChatCompletion(context.Background(), &ChatCompletionRequest{})
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, IsTransient(gobreaker.ErrOpenState))
	assert.False(t, IsTransient(errors.New("plain")))

	// connection refused surfaces as *url.Error
	_, err := NewClient("http://127.0.0.1:1", "", 200*time.Millisecond).CreateChatCompletion(context.Background(), &ChatCompletionRequest{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestMockClient(t *testing.T) {
	resp, err := NewMockClient().CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model: "m",
		Messages: []ChatMessage{
			{Role: "system", Content: "be kind"},
			{Role: "user", Content: "hello there"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Content(), "hello there")
	assert.Equal(t, 2+3, resp.Usage.PromptTokens)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMockClient().CreateChatCompletion(ctx, &ChatCompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactory(t *testing.T) {
	log := logger.NewNop()
	assert.IsType(t, &MockClient{}, NewLLMClient("mock", "", "", time.Second, log))
	assert.IsType(t, &Client{}, NewLLMClient("", "http://x", "", time.Second, log))
}

type scriptedClient struct {
	calls atomic.Int32
	errs  []error
}

func (s *scriptedClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return &ChatCompletionResponse{Choices: []Choice{{Message: &ChatMessage{Role: "assistant", Content: "ok"}}}}, nil
}

func newTestInvoker(client LLMClient, cfg InvokerConfig) (*Invoker, *[]time.Duration) {
	inv := NewInvoker(client, cfg, logger.NewNop())
	var delays []time.Duration
	inv.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return inv, &delays
}

func TestInvokerRetriesTransient(t *testing.T) {
	client := &scriptedClient{errs: []error{
		&StatusError{StatusCode: 503},
		context.DeadlineExceeded,
	}}
	inv, delays := newTestInvoker(client, InvokerConfig{Attempts: 3, BaseDelay: 100 * time.Millisecond})

	resp, attempts, err := inv.Invoke(context.Background(), &ChatCompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content())
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
}

func TestInvokerGivesUpAfterAttempts(t *testing.T) {
	fail := &StatusError{StatusCode: 500}
	client := &scriptedClient{errs: []error{fail, fail, fail, fail}}
	inv, _ := newTestInvoker(client, InvokerConfig{Attempts: 3, TripAfter: 10})

	_, attempts, err := inv.Invoke(context.Background(), &ChatCompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int32(3), client.calls.Load())
}

func TestInvokerDoesNotRetryPermanent(t *testing.T) {
	client := &scriptedClient{errs: []error{&StatusError{StatusCode: 400}}}
	inv, delays := newTestInvoker(client, InvokerConfig{Attempts: 3})

	_, attempts, err := inv.Invoke(context.Background(), &ChatCompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *delays)
}

func TestInvokerBreakerOpens(t *testing.T) {
	fail := &StatusError{StatusCode: 503}
	client := &scriptedClient{errs: []error{fail, fail, fail, fail}}
	inv, _ := newTestInvoker(client, InvokerConfig{Attempts: 1, TripAfter: 2, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, _, err := inv.Invoke(context.Background(), &ChatCompletionRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, "open", inv.State())

	_, attempts, err := inv.Invoke(context.Background(), &ChatCompletionRequest{})
	assert.True(t, IsBreakerOpen(err))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestInvokerPermanentErrorsDoNotTrip(t *testing.T) {
	bad := &StatusError{StatusCode: 400}
	client := &scriptedClient{errs: []error{bad, bad, bad}}
	inv, _ := newTestInvoker(client, InvokerConfig{Attempts: 1, TripAfter: 2})

	for i := 0; i < 3; i++ {
		_, _, _ = inv.Invoke(context.Background(), &ChatCompletionRequest{})
	}
	assert.Equal(t, "closed", inv.State())
}
