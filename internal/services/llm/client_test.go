package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func writeChoice(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}}); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestCompleteJSONSendsMessagesAndResponseFormat(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "demo-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "plan these clips" {
			t.Errorf("unexpected messages %#v", req.Messages)
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("response format = %#v", req.ResponseFormat)
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{"clips":[]}`}})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.CompleteJSON(context.Background(), "system rules", "plan these clips")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"clips":[]}` {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteJSONRequiresPrompts(t *testing.T) {
	client := NewClient(Config{APIKey: "test"})
	if _, err := client.CompleteJSON(context.Background(), " ", "user"); err == nil {
		t.Fatal("expected error for blank system prompt")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", ""); err == nil {
		t.Fatal("expected error for blank user prompt")
	}
	keyless := NewClient(Config{})
	if _, err := keyless.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestCompleteJSONToolCallArguments(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChoice(t, w, map[string]any{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{
					map[string]any{"function": map[string]any{"name": "storyboard", "arguments": `{"clips":[{"start":0}]}`}},
				},
			},
		})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	content, err := client.CompleteJSON(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if !strings.Contains(content, `"clips"`) {
		t.Fatalf("expected tool call arguments, got %q", content)
	}
}

func TestCompleteJSONDeltaAndLegacyText(t *testing.T) {
	for name, choice := range map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": `{"ok":1}`}},
		"legacy": {"text": `{"ok":1}`},
	} {
		t.Run(name, func(t *testing.T) {
			server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeChoice(t, w, choice)
			})
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
			content, err := client.CompleteJSON(context.Background(), "s", "u")
			if err != nil || content != `{"ok":1}` {
				t.Fatalf("CompleteJSON = %q, %v", content, err)
			}
		})
	}
}

func TestCompleteJSONEmptyContentHasSnippet(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeChoice(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}})
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected empty content failure")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		writeChoice(t, w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryBackoff(time.Second, 5*time.Second),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected Retry-After sleep of 2s, got %v", slept)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	if _, err := client.CompleteJSON(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 3*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := client.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestClientRetryMaxAttemptsAndHTTPClient(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithHTTPClient(server.Client()),
		WithRetryMaxAttempts(3),
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected 502 failure, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}
