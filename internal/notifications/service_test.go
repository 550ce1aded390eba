package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"easel/internal/config"
	"easel/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		captured []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), captured...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFailed(context.Background(), notifications.Job{Profile: "edit"}, "timeout", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop test notification to return nil, got %v", err)
	}
}

func TestNotifyJobFailedFormatsPayload(t *testing.T) {
	srv, captured := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.NotifyJobFailed(context.Background(), notifications.Job{
		RequestID: "req-1",
		Profile:   "edit",
		Requester: "alice",
	}, "backend_execution", errors.New("node 9 exploded"))
	if err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}

	got := captured()
	if len(got) != 1 {
		t.Fatalf("expected one request, got %d", len(got))
	}
	req := got[0]
	if req.title != "Easel - Job Failed" || req.tags != "easel,job,failed" || req.priority != "high" {
		t.Fatalf("unexpected headers %+v", req)
	}
	want := "❌ edit failed for alice (backend_execution): node 9 exploded\nRequest: req-1"
	if req.body != want {
		t.Fatalf("unexpected body %q, want %q", req.body, want)
	}
}

func TestJobCompletionsGatedByConfig(t *testing.T) {
	srv, captured := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.JobCompletions = false
	svc := notifications.NewService(&cfg)

	job := notifications.Job{Profile: "blend", Requester: "bob", Outputs: 2, Duration: 95 * time.Second}
	if err := svc.NotifyJobCompleted(context.Background(), job); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}
	if n := len(captured()); n != 0 {
		t.Fatalf("expected completion push suppressed, got %d requests", n)
	}

	cfg.Notifications.JobCompletions = true
	svc = notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), job); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}
	got := captured()
	if len(got) != 1 {
		t.Fatalf("expected one completion push, got %d", len(got))
	}
	if got[0].body != "✅ blend finished for bob: 2 image(s) in 1m35s" {
		t.Fatalf("unexpected body %q", got[0].body)
	}
}

func TestJobFailuresGatedByConfig(t *testing.T) {
	srv, captured := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.JobFailures = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobFailed(context.Background(), notifications.Job{Profile: "edit"}, "", nil); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if n := len(captured()); n != 0 {
		t.Fatalf("expected failure push suppressed, got %d", n)
	}
}

func TestSendReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNotifyErrorIncludesContext(t *testing.T) {
	srv, captured := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyError(context.Background(), errors.New("panic: nil map"), "worker"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	got := captured()
	if len(got) != 1 || got[0].body != "❌ Error with worker: panic: nil map" {
		t.Fatalf("unexpected capture %+v", got)
	}
}
