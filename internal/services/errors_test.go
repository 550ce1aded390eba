package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"easel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("connection reset")
	err := services.Wrap(services.ErrUpload, "upload", "post", "image 1", base)
	if !errors.Is(err, services.ErrUpload) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"upload", "post", "image 1", "connection reset"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindClassifiesMarkers(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrTemplateLoad, "template", "read", "", nil), "template_load"},
		{services.Wrap(services.ErrAssetMissingSlot, "upload", "", "node 12", nil), "asset_missing_slot"},
		{services.Wrap(services.ErrPromptSlotMissing, "prompt", "", "", nil), "prompt_slot_missing"},
		{services.Wrap(services.ErrSubmission, "submit", "", "", errors.New("400")), "submission"},
		{services.Wrap(services.ErrBackendExecution, "monitor", "", "", nil), "backend_execution"},
		{services.Wrap(services.ErrNoOutput, "deliver", "", "", nil), "no_output"},
		{fmt.Errorf("outer: %w", services.ErrTimeout), "timeout"},
		{context.Canceled, "canceled"},
		{services.Wrap(services.ErrUpload, "upload", "download asset", "image 1", context.Canceled), "canceled"},
		{services.Wrap(services.ErrSubmission, "submit", "", "", fmt.Errorf("post: %w", context.Canceled)), "canceled"},
		{errors.New("boom"), "unknown"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.want {
			t.Fatalf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	if got := services.UserMessage(services.Wrap(services.ErrTimeout, "monitor", "", "", nil)); got != "the request timed out" {
		t.Fatalf("unexpected timeout message %q", got)
	}
	canceled := services.Wrap(services.ErrUpload, "upload", "", "", context.Canceled)
	if got := services.UserMessage(canceled); got != "the service is shutting down" {
		t.Fatalf("unexpected canceled message %q", got)
	}
	err := services.Wrap(services.ErrAssetMissingSlot, "upload", "", `node "12" not found in workflow "edit"`, nil)
	if got := services.UserMessage(err); !strings.Contains(got, `node "12"`) {
		t.Fatalf("expected slot detail in message, got %q", got)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCorrelationID(ctx, "corr-1")
	ctx = services.WithPromptID(ctx, "prompt-9")
	ctx = services.WithProfile(ctx, "edit")
	ctx = services.WithRequester(ctx, "user-1", "chan-1")
	ctx = services.WithStage(ctx, "submit")

	if id, ok := services.CorrelationIDFromContext(ctx); !ok || id != "corr-1" {
		t.Fatalf("unexpected correlation id: %v %v", id, ok)
	}
	if id, ok := services.PromptIDFromContext(ctx); !ok || id != "prompt-9" {
		t.Fatalf("unexpected prompt id: %v %v", id, ok)
	}
	if alias, ok := services.ProfileFromContext(ctx); !ok || alias != "edit" {
		t.Fatalf("unexpected profile: %v %v", alias, ok)
	}
	if requester, channel := services.RequesterFromContext(ctx); requester != "user-1" || channel != "chan-1" {
		t.Fatalf("unexpected requester/channel: %q %q", requester, channel)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "submit" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
