package api_test

import (
	"testing"
	"time"

	"easel/internal/api"
	"easel/internal/history"
	"easel/internal/intake"
	"easel/internal/queue"
	"easel/internal/testsupport"
	"easel/internal/workflow"
)

func TestFromSnapshot(t *testing.T) {
	enqueued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := queue.Snapshot{
		Capacity: 3,
		Busy:     true,
		Active:   &queue.Summary{ID: "a", Profile: "edit", Mode: "raw", Assets: 1, EnqueuedAt: enqueued},
		Waiting: []queue.Summary{
			{ID: "b", Position: 1, Profile: "blend", Requester: "u1", Channel: "c1", Assets: 2},
		},
	}

	status := api.FromSnapshot(snap)
	if status.Capacity != 3 || !status.Busy {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Active == nil || status.Active.ID != "a" || status.Active.EnqueuedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected active %+v", status.Active)
	}
	if len(status.Waiting) != 1 || status.Waiting[0].Position != 1 || status.Waiting[0].EnqueuedAt != "" {
		t.Fatalf("unexpected waiting %+v", status.Waiting)
	}

	empty := api.FromSnapshot(queue.Snapshot{Capacity: 1})
	if empty.Waiting == nil || empty.Active != nil {
		t.Fatalf("expected empty non-nil waiting list, got %+v", empty)
	}
}

func TestFromStatusSummary(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:   true,
		Processed: 4,
		Failed:    1,
		Last: &workflow.Result{
			RequestID: "r1",
			Profile:   "edit",
			Status:    queue.StatusTimedOut,
			ErrorKind: "timeout",
			Duration:  1500 * time.Millisecond,
		},
	}
	status := api.FromStatusSummary(summary)
	if !status.Running || status.Busy || status.Processed != 4 || status.Failed != 1 {
		t.Fatalf("unexpected worker status %+v", status)
	}
	if status.Last == nil || status.Last.Status != "timed_out" || status.Last.DurationMS != 1500 || status.Last.FinishedAt != "" {
		t.Fatalf("unexpected last result %+v", status.Last)
	}
}

func TestFromHistoryEntry(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := history.Entry{
		RequestID:   "r1",
		Profile:     "edit",
		Status:      queue.StatusCompleted,
		OutputCount: 2,
		StartedAt:   &started,
		FinishedAt:  started.Add(3 * time.Second),
	}
	dto := api.FromHistoryEntry(entry)
	if dto.Status != "completed" || dto.DurationMS != 3000 || dto.StartedAt == "" || dto.EnqueuedAt != "" {
		t.Fatalf("unexpected history dto %+v", dto)
	}
	if got := api.FromHistoryEntries(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestFromProfiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	profiles := api.FromProfiles(cfg)
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Alias != "edit" || !profiles[0].Default || profiles[1].Default {
		t.Fatalf("unexpected default marking %+v", profiles)
	}
	if len(profiles[1].AssetSlots) != 2 || profiles[1].PermissionLevel != 1 {
		t.Fatalf("unexpected blend profile %+v", profiles[1])
	}
	if api.FromProfiles(nil) != nil {
		t.Fatal("expected nil for nil config")
	}
}

func TestFromReply(t *testing.T) {
	queued := api.FromReply(intake.Reply{Outcome: intake.OutcomeQueued, Position: 2, Message: intake.MessageQueued(2)})
	if !queued.Handled || queued.Outcome != "queued" || queued.Position != 2 {
		t.Fatalf("unexpected queued response %+v", queued)
	}
	ignored := api.FromReply(intake.Reply{Outcome: intake.OutcomeIgnored})
	if ignored.Handled {
		t.Fatalf("ignored reply should not be handled: %+v", ignored)
	}
}

func TestSortedStatuses(t *testing.T) {
	got := api.SortedStatuses(api.FromHistoryStats(map[queue.Status]int{
		queue.StatusTimedOut:  1,
		queue.StatusCompleted: 3,
		queue.StatusFailed:    2,
	}))
	want := []string{"completed", "failed", "timed_out"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
