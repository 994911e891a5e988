package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %q}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`, content)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key",
		WithBaseURL(srv.URL+"/"),
		WithBackoff(time.Millisecond),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestClient_GenerateCompletion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody(`{"overview": "ok"}`))
	})

	resp, err := client.GenerateCompletion(context.Background(), notes.CompletionRequest{
		PromptID:       notes.PromptOverview,
		Prompt:         "write an overview",
		ResponseFormat: "json",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"overview": "ok"}`, resp.Content)
	assert.Equal(t, 15, resp.TokensUsed)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, notes.PromptVersion, resp.PromptVersion)
}

func TestClient_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error": {"message": "rate limited", "type": "requests", "code": "rate_limit_exceeded"}}`)
			return
		}
		_, _ = io.WriteString(w, completionBody("plain text"))
	})

	resp, err := client.GenerateCompletion(context.Background(), notes.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "plain text", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "rate limited"}}`)
	})

	_, err := client.GenerateCompletion(context.Background(), notes.CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.Equal(t, int32(MaxRetries+1), calls.Load())
}

func TestClient_InvalidJSONResponse(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody("not json"))
	})

	_, err := client.GenerateCompletion(context.Background(), notes.CompletionRequest{Prompt: "hi", ResponseFormat: "json"})
	assert.ErrorIs(t, err, ErrInvalidResponseFormat)
	assert.Equal(t, int32(JSONParseMaxRetries+1), calls.Load())
}

func TestNewLimiter(t *testing.T) {
	assert.True(t, newLimiter(0).Allow())
	limited := newLimiter(60)
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())
}
