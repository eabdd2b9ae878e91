package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domainerrors "github.com/shadowscope/shadow-ai-assessor/internal/domain/errors"
	"github.com/shadowscope/shadow-ai-assessor/internal/infrastructure/config"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/narrative"
	"github.com/shadowscope/shadow-ai-assessor/internal/service/tools"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.LLMConfig{
		BaseURL: server.URL + "/v1",
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	}, zaptest.NewLogger(t))
}

func TestClient_Complete(t *testing.T) {
	var captured map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"location\":\"NYC\"}"}
					}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	})

	resp, err := client.Complete(context.Background(), narrative.ChatRequest{
		Messages: []narrative.Message{
			{Role: narrative.RoleSystem, Content: "sys"},
			{Role: narrative.RoleUser, Content: "hello"},
		},
		Tools:     []tools.Definition{{Name: "get_weather", Description: "weather", Parameters: map[string]interface{}{"type": "object"}}},
		MaxTokens: 16000,
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, narrative.ToolCallDelta{
		Index:     0,
		ID:        "call_1",
		Name:      "get_weather",
		Arguments: `{"location":"NYC"}`,
	}, resp.ToolCalls[0])

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.EqualValues(t, 16000, captured["max_tokens"])
	assert.Len(t, captured["messages"], 2)
	assert.Len(t, captured["tools"], 1)
}

func TestClient_CompleteErrors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
		})

		_, err := client.Complete(context.Background(), narrative.ChatRequest{
			Messages: []narrative.Message{{Role: narrative.RoleUser, Content: "hi"}},
		})
		require.Error(t, err)
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeExternal))
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"x","choices":[]}`)
		})

		_, err := client.Complete(context.Background(), narrative.ChatRequest{
			Messages: []narrative.Message{{Role: narrative.RoleUser, Content: "hi"}},
		})
		assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeMalformedResponse))
	})
}

func TestClient_FollowupCarriesToolMessages(t *testing.T) {
	var captured struct {
		Messages []struct {
			Role       string `json:"role"`
			ToolCallID string `json:"tool_call_id"`
			ToolCalls  []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"messages"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"done"}}]}`)
	})

	resp, err := client.Complete(context.Background(), narrative.ChatRequest{
		Messages: []narrative.Message{
			{Role: narrative.RoleUser, Content: "hi"},
			{Role: narrative.RoleAssistant, ToolCalls: []narrative.ToolCall{
				{ID: "call_1", Name: "web", RawArguments: `{"action":"search"}`},
				{ID: "call_2", Name: "get_weather"},
			}},
			{Role: narrative.RoleTool, ToolCallID: "call_1", Content: `{"results":[]}`},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)

	require.Len(t, captured.Messages, 3)
	calls := captured.Messages[1].ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, `{"action":"search"}`, calls[0].Function.Arguments)
	assert.Equal(t, "{}", calls[1].Function.Arguments)
	assert.Equal(t, "tool", captured.Messages[2].Role)
	assert.Equal(t, "call_1", captured.Messages[2].ToolCallID)
}

func TestClient_Stream(t *testing.T) {
	events := []string{
		`{"id":"c","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"id":"c","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_9","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"loc"}}]}}]}`,
		`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ation\":\"NYC\"}"}}]}}]}`,
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := client.Stream(context.Background(), narrative.ChatRequest{
		Messages: []narrative.Message{{Role: narrative.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	defer stream.Close()

	var content string
	acc := narrative.NewAccumulator()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		content += chunk.Content
		for _, d := range chunk.ToolCalls {
			acc.Add(d)
		}
	}

	assert.Equal(t, "Hello", content)
	calls := acc.Finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_9", calls[0].ID)
	assert.Equal(t, "get_weather", calls[0].Name)
	assert.Equal(t, map[string]interface{}{"location": "NYC"}, calls[0].Arguments)
}
