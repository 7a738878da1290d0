package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if req["model"] != "gpt-4o" {
			t.Errorf("unexpected model %v", req["model"])
		}
		if _, ok := req["tools"]; ok {
			t.Error("tools sent without any being requested")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "hello" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if resp.HasToolCalls() {
		t.Fatal("unexpected tool calls")
	}
}

func TestOpenAIChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if req["tool_choice"] != "auto" {
			t.Errorf("expected tool_choice auto, got %v", req["tool_choice"])
		}

		w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "web_search", "arguments": "{\"query\": \"CPT 69990\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"total_tokens": 20}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "score this"}},
		Tools: []ToolDefinition{{
			Type:     "function",
			Function: FunctionDef{Name: "web_search"},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.HasToolCalls() {
		t.Fatal("expected tool calls")
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Name != "web_search" {
		t.Fatalf("unexpected tool call %+v", tc)
	}
	if tc.Arguments["query"] != "CPT 69990" {
		t.Fatalf("arguments not decoded: %v", tc.Arguments)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, "")
	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestOpenAIConvertMessagesRoundTrip(t *testing.T) {
	p := NewOpenAIProvider("k", "", "")

	msgs := p.convertMessages([]Message{
		{Role: "assistant", Content: "", ToolCalls: []ToolCall{{ID: "c1", Name: "ocr", Arguments: map[string]any{"image_path": "/tmp/p.png"}}}},
		{Role: "tool", Content: "done", ToolCallID: "c1"},
	})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	calls := msgs[0]["tool_calls"].([]map[string]any)
	fn := calls[0]["function"].(map[string]any)
	if fn["name"] != "ocr" {
		t.Fatalf("unexpected function %v", fn)
	}
	if !strings.Contains(fn["arguments"].(string), "image_path") {
		t.Fatalf("arguments not serialized: %v", fn["arguments"])
	}
	if msgs[1]["tool_call_id"] != "c1" {
		t.Fatalf("tool_call_id missing: %v", msgs[1])
	}
}
