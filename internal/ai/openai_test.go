package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_GenerateCompletion_JSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "score these grants", req.Messages[1].Content)

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "  {\"scores\": []}\n"},
				FinishReason: "stop",
			}},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-key", server.URL, "gpt-4o-mini")
	require.NoError(t, err)

	out, err := client.GenerateCompletion(context.Background(), "score these grants", true)
	require.NoError(t, err)
	assert.Equal(t, `{"scores": []}`, out)
}

func TestOpenAIClient_RateLimitIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached for requests","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-key", server.URL, "")
	require.NoError(t, err)

	_, err = client.GenerateCompletion(context.Background(), "prompt", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, IsRateLimited(err))
}

func TestOpenAIClient_ServerErrorIsNotRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-key", server.URL, "")
	require.NoError(t, err)

	_, err = client.GenerateCompletion(context.Background(), "prompt", true)
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", "", "")
	assert.Error(t, err)
}
