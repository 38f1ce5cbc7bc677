package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini-2024-07-18",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Use a C18 column."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 8, "total_tokens": 48}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", srv.URL+"/v1", "")
	assert.Equal(t, "gpt-4o-mini", p.Model())

	c, err := p.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: "system", Content: "You are a chromatography advisor."},
			{Role: "user", Content: "best column for peptides?"},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "Use a C18 column.", c.Content)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", c.Model)
	assert.Equal(t, 48, c.TotalTokens)
	assert.Equal(t, 40, c.PromptTokens)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 500, got["max_tokens"])
	assert.Len(t, got["messages"], 2)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [], "usage": {"total_tokens": 0}}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", srv.URL, "gpt-4o")
	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestOpenAI_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", srv.URL, "gpt-4o")
	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	assert.Error(t, err)
}

func TestGeminiRole(t *testing.T) {
	assert.Equal(t, "model", geminiRole("assistant"))
	assert.Equal(t, "user", geminiRole("user"))
}
