package deepseek

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

func completionHandler(t *testing.T, content string, seen func(chatCompletionRequest)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil {
			seen(req)
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestTranslateSendsSystemPrompt(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(completionHandler(t, "  red car \n", func(req chatCompletionRequest) {
		captured = req
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	got, err := client.Translate(context.Background(), "红色的车")
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if got != "red car" {
		t.Fatalf("expected trimmed translation, got %q", got)
	}
	if captured.Model != defaultModel {
		t.Fatalf("expected default model, got %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Content != TranslationPrompt || captured.Messages[1].Content != "红色的车" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
}

func TestEngineerUsesStructuredPrompt(t *testing.T) {
	var system string
	server := httptest.NewServer(completionHandler(t, "Change the car color to red", func(req chatCompletionRequest) {
		system = req.Messages[0].Content
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/"})
	got, err := client.Engineer(context.Background(), "make the car red")
	if err != nil {
		t.Fatalf("Engineer returned error: %v", err)
	}
	if got != "Change the car color to red" {
		t.Fatalf("unexpected output %q", got)
	}
	if !strings.Contains(system, "image-editing instructions") {
		t.Fatalf("expected engineering prompt, got %q", system)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		completionHandler(t, "ok", nil)(w, r)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithRetryMaxAttempts(3),
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	if _, err := client.Translate(context.Background(), "hola"); err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Fatalf("unexpected backoff sequence %v", sleeps)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.Engineer(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "http 401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single call, got %d", calls.Load())
	}
}

func TestClientRequiresKeyAndText(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Translate(context.Background(), "text"); err == nil {
		t.Fatal("expected missing key error")
	}
	client = NewClient(Config{APIKey: "k"})
	if _, err := client.Translate(context.Background(), "   "); err == nil {
		t.Fatal("expected empty text error")
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "OK", nil))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected seconds parse %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("expected invalid value rejected")
	}
}
