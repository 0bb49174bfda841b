package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

const completionReply = `{
	"id": "c1", "object": "chat.completion", "model": "m",
	"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
		"role": "assistant", "content": "",
		"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "add", "arguments": "{\"a\":1,\"b\":2}"}}]
	}}]
}`

func newTestModel(t *testing.T, url string, retries int) *OpenAIModel {
	t.Helper()
	m, err := NewOpenAIModel(ModelOptions{
		Provider:      "openai",
		Model:         "m",
		BaseURL:       url,
		APIKey:        "test-key",
		RetryAttempts: retries,
		RetryBase:     time.Millisecond,
		RetryMax:      2 * time.Millisecond,
	})
	require.NoError(t, err)
	return m
}

func TestCompleteSendsConversationAndTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "m", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "tool", req.Messages[1].Role)
		require.Equal(t, "prev", req.Messages[1].ToolCallID)
		require.Len(t, req.Tools, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionReply))
	}))
	defer srv.Close()

	m := newTestModel(t, srv.URL, 0)
	require.Equal(t, "openai/m", m.Name())

	msg, err := m.Complete(context.Background(), []Message{
		{Role: RoleUser, Content: "1+2"},
		{Role: RoleTool, Content: "3", Name: "add", ToolCallID: "prev"},
	}, []openai.Tool{{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{Name: "add"}}})
	require.NoError(t, err)
	require.Equal(t, RoleAssistant, msg.Role)
	require.Equal(t, []ToolCall{{ID: "call_1", Name: "add", Arguments: `{"a":1,"b":2}`}}, msg.ToolCalls)
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		case 2:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"oops","type":"server_error"}}`))
		default:
			w.Write([]byte(completionReply))
		}
	}))
	defer srv.Close()

	m := newTestModel(t, srv.URL, 3)
	_, err := m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestCompleteGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"down","type":"server_error"}}`))
	}))
	defer srv.Close()

	m := newTestModel(t, srv.URL, 2)
	_, err := m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.True(t, IsTransient(err))
	require.EqualValues(t, 3, calls.Load())
}

func TestCompleteDoesNotRetryFatalErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	m := newTestModel(t, srv.URL, 3)
	_, err := m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	require.EqualValues(t, 1, calls.Load())
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	m := newTestModel(t, srv.URL, 3)
	_, err := m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestProviders(t *testing.T) {
	_, err := LookupProvider("nope")
	require.Error(t, err)

	p, err := LookupProvider("groq")
	require.NoError(t, err)
	require.Equal(t, "qwen-qwq-32b", p.DefaultModel)

	t.Setenv("GROQ_API_KEY", "")
	_, err = p.APIKey()
	require.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv("GROQ_API_KEY", "gsk")
	key, err := p.APIKey()
	require.NoError(t, err)
	require.Equal(t, "gsk", key)
}
