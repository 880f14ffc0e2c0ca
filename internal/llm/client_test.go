package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal completion: %v", err)
	}
	return encoded
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != jsonResponseType {
			t.Errorf("expected json response format, got %v", req.ResponseFormat)
		}
		w.Write(completionBody(t, `{"relationships":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "test-model"})
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"relationships":[]}` {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(completionBody(t, `{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(time.Duration) {}))
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestCompleteJSONHonorsRetryAfter(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(completionBody(t, `{}`))
	}))
	defer server.Close()

	var slept time.Duration
	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(d time.Duration) { slept = d }))
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if slept != 3*time.Second {
		t.Fatalf("expected Retry-After to drive the delay, slept %v", slept)
	}
}

func TestCompleteJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "m"},
		WithSleeper(func(time.Duration) {}))
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls != 1 {
		t.Fatalf("expected single call for client error, got %d", calls)
	}
}

func TestHealthCheckRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody(t, `{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "test-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestHealthCheckRejectsBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionBody(t, `{"ok":false}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "test-model"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for unhealthy response")
	}

	missing := NewClient(Config{Model: "test-model"})
	if err := missing.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCompleteJSONRequiresPrompts(t *testing.T) {
	client := NewClient(Config{APIKey: "key"})
	if _, err := client.CompleteJSON(context.Background(), "", "user"); err == nil {
		t.Fatal("expected error for empty system prompt")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", ""); err == nil {
		t.Fatal("expected error for empty user prompt")
	}
}

func TestDecodeLLMJSONHandlesFences(t *testing.T) {
	var target struct {
		Value int `json:"value"`
	}
	cases := []string{
		`{"value": 7}`,
		"```json\n{\"value\": 7}\n```",
		"Here is the result:\n{\"value\": 7}\nHope that helps.",
	}
	for _, payload := range cases {
		target.Value = 0
		if err := DecodeLLMJSON(payload, &target); err != nil {
			t.Fatalf("DecodeLLMJSON(%q): %v", payload, err)
		}
		if target.Value != 7 {
			t.Fatalf("DecodeLLMJSON(%q) = %d", payload, target.Value)
		}
	}
}

func TestDecodeLLMJSONBareArray(t *testing.T) {
	var target []map[string]string
	payload := "```json\n[{\"a\":\"b\"}]\n```"
	if err := DecodeLLMJSON(payload, &target); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if len(target) != 1 || target[0]["a"] != "b" {
		t.Fatalf("unexpected decode result: %v", target)
	}
}

func TestDecodeLLMJSONEmptyPayload(t *testing.T) {
	var target any
	if err := DecodeLLMJSON("   ", &target); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
