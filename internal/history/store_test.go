package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"easel/internal/history"
	"easel/internal/queue"
	"easel/internal/testsupport"
)

func TestRecordAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, status := range []queue.Status{queue.StatusCompleted, queue.StatusFailed, queue.StatusTimedOut} {
		started := base.Add(time.Duration(i) * time.Minute)
		entry := history.Entry{
			RequestID:    "req-" + string(status),
			Profile:      "edit",
			Requester:    "u1",
			Channel:      "c1",
			Mode:         "engineer",
			OriginalText: "make it red",
			Status:       status,
			StartedAt:    &started,
			FinishedAt:   started.Add(30 * time.Second),
		}
		if status == queue.StatusFailed {
			entry.ErrorKind = "upload"
			entry.ErrorMessage = "upload failed"
		}
		if _, err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record(%s) failed: %v", status, err)
		}
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Status != queue.StatusTimedOut || entries[1].Status != queue.StatusFailed {
		t.Fatalf("expected newest first, got %s then %s", entries[0].Status, entries[1].Status)
	}
	if entries[1].ErrorKind != "upload" || entries[1].ErrorMessage != "upload failed" {
		t.Fatalf("unexpected error fields: %+v", entries[1])
	}
	if got := entries[0].Duration(); got != 30*time.Second {
		t.Fatalf("expected 30s duration, got %s", got)
	}
	if entries[0].EnqueuedAt != nil {
		t.Fatalf("expected nil enqueued time, got %v", entries[0].EnqueuedAt)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusCompleted] != 1 || stats[queue.StatusFailed] != 1 || stats[queue.StatusTimedOut] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if _, err := store.Record(ctx, history.Entry{Profile: "edit", Status: queue.StatusCompleted}); err == nil {
		t.Fatal("expected error for missing request id")
	}
	if _, err := store.Record(ctx, history.Entry{RequestID: "r", Profile: "edit", Status: queue.StatusMonitoring}); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if _, err := store.Record(ctx, history.Entry{
		RequestID:     "abc",
		CorrelationID: "corr",
		PromptID:      "prompt-1",
		Profile:       "blend",
		FinalText:     "Change the car color to red",
		Status:        queue.StatusCompleted,
		OutputCount:   2,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entry, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil || entry.PromptID != "prompt-1" || entry.OutputCount != 2 || entry.FinishedAt.IsZero() {
		t.Fatalf("unexpected entry %+v", entry)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil entry for unknown id, got %+v err=%v", missing, err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Record(context.Background(), history.Entry{RequestID: "r1", Profile: "edit", Status: queue.StatusCompleted}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	entries, err := reopened.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].RequestID != "r1" {
		t.Fatalf("expected persisted entry, got %+v", entries)
	}
}

func TestSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(cfg); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
