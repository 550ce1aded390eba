package intake_test

import (
	"context"
	"sync"
	"testing"

	"easel/internal/assembly"
	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/intake"
	"easel/internal/prompt"
	"easel/internal/queue"
	"easel/internal/testsupport"
)

type countingWorker struct {
	mu       sync.Mutex
	triggers int
}

func (w *countingWorker) Trigger() {
	w.mu.Lock()
	w.triggers++
	w.mu.Unlock()
}

func (w *countingWorker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.triggers
}

type fixture struct {
	cfg       *config.Config
	queue     *queue.Queue
	assembler *assembly.Assembler
	worker    *countingWorker
	intake    *intake.Intake
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	f := &fixture{
		cfg:       cfg,
		queue:     queue.New(cfg.Queue.Capacity),
		assembler: assembly.New(nil),
		worker:    &countingWorker{},
	}
	f.intake = intake.New(intake.Options{
		Config:    cfg,
		Assembler: f.assembler,
		Queue:     f.queue,
		Modes:     prompt.NewPipeline(prompt.Options{Enabled: true, BypassPhrase: "remove clothes"}),
		Worker:    f.worker,
	})
	return f
}

func assets(urls ...string) []chat.Asset {
	out := make([]chat.Asset, 0, len(urls))
	for _, u := range urls {
		out = append(out, chat.Asset{URL: u})
	}
	return out
}

func TestSelectProfile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tests := []struct {
		text      string
		wantAlias string
		wantText  string
	}{
		{"blend  mix   these", "blend", "mix these"},
		{"make it red", "edit", "make it red"},
		{"", "edit", ""},
		{"edit", "edit", ""},
		{"Blend mix", "edit", "Blend mix"},
	}
	for _, tc := range tests {
		profile, text, ok := intake.SelectProfile(cfg, tc.text)
		if !ok || profile.Alias != tc.wantAlias || text != tc.wantText {
			t.Fatalf("SelectProfile(%q) = %q, %q, %v; want %q, %q", tc.text, profile.Alias, text, ok, tc.wantAlias, tc.wantText)
		}
	}

	empty := testsupport.NewConfig(t, testsupport.WithProfiles())
	if _, _, ok := intake.SelectProfile(empty, "anything"); ok {
		t.Fatal("expected no profile without workflows")
	}
}

func TestCommandWithEnoughAssetsIsQueued(t *testing.T) {
	f := newFixture(t)
	session := testsupport.NewSession("alice", "general", 0)

	reply := f.intake.HandleCommand(context.Background(), session, intake.Command{
		Text:   "make it red",
		Assets: assets("a", "b"),
	})
	if reply.Outcome != intake.OutcomeQueued || reply.Position != 1 || reply.Profile != "edit" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if session.Last() != "Queued (position 1)..." {
		t.Fatalf("unexpected message %q", session.Last())
	}
	if f.worker.count() != 1 {
		t.Fatalf("expected worker triggered once, got %d", f.worker.count())
	}
	req, ok := f.queue.TryClaim()
	if !ok || len(req.Assets) != 1 || req.Assets[0].URL != "a" || req.Mode != prompt.ModeEngineer {
		t.Fatalf("unexpected queued request %+v", req)
	}
}

func TestMultiTurnCommand(t *testing.T) {
	f := newFixture(t)
	session := testsupport.NewSession("alice", "general", 1)

	reply := f.intake.HandleCommand(context.Background(), session, intake.Command{Text: "blend mix them", TranslateOnly: true})
	if reply.Outcome != intake.OutcomeAwaitingAsset || session.Last() != "Please send image 1 of 2." {
		t.Fatalf("unexpected first reply %+v / %q", reply, session.Last())
	}

	if r := f.intake.HandleMessage(context.Background(), session, nil); r.Handled() {
		t.Fatalf("expected plain text ignored, got %+v", r)
	}
	reply = f.intake.HandleMessage(context.Background(), session, assets("one", "extra"))
	if reply.Outcome != intake.OutcomeAwaitingAsset || session.Last() != "Please send image 2 of 2." {
		t.Fatalf("unexpected second reply %+v / %q", reply, session.Last())
	}
	reply = f.intake.HandleMessage(context.Background(), session, assets("two"))
	if reply.Outcome != intake.OutcomeQueued || session.Last() != "Queued (position 1)..." {
		t.Fatalf("unexpected final reply %+v / %q", reply, session.Last())
	}

	req, ok := f.queue.TryClaim()
	if !ok {
		t.Fatal("expected queued request")
	}
	if req.Text != "mix them" || req.Mode != prompt.ModeTranslate || req.Profile.Alias != "blend" {
		t.Fatalf("unexpected request %+v", req)
	}
	if len(req.Assets) != 2 || req.Assets[0].URL != "one" || req.Assets[1].URL != "two" {
		t.Fatalf("unexpected assets %+v", req.Assets)
	}
	if f.assembler.Len() != 0 {
		t.Fatal("expected assembly cleared")
	}
}

func TestPermissionDenied(t *testing.T) {
	f := newFixture(t)
	session := testsupport.NewSession("guest", "general", 0)

	reply := f.intake.HandleCommand(context.Background(), session, intake.Command{Text: "blend mix", Assets: assets("a", "b")})
	if reply.Outcome != intake.OutcomeRejected {
		t.Fatalf("expected rejection, got %+v", reply)
	}
	want := `Permission denied (level 0) for workflow "blend" (requires level 1).`
	if session.Last() != want {
		t.Fatalf("expected %q, got %q", want, session.Last())
	}
	if f.queue.Len() != 0 || f.assembler.Len() != 0 || f.worker.count() != 0 {
		t.Fatal("expected no state change on denial")
	}
}

func TestNoWorkflowsConfigured(t *testing.T) {
	f := newFixture(t, testsupport.WithProfiles())
	session := testsupport.NewSession("alice", "general", 5)

	reply := f.intake.HandleCommand(context.Background(), session, intake.Command{Text: "hello"})
	if reply.Outcome != intake.OutcomeRejected || session.Last() != intake.MessageNoWorkflows {
		t.Fatalf("unexpected reply %+v / %q", reply, session.Last())
	}
}

func TestQueueFull(t *testing.T) {
	f := newFixture(t, testsupport.WithQueueCapacity(1))
	first := testsupport.NewSession("a", "c", 0)
	second := testsupport.NewSession("b", "c", 0)

	f.intake.HandleCommand(context.Background(), first, intake.Command{Text: "x", Assets: assets("1")})
	reply := f.intake.HandleCommand(context.Background(), second, intake.Command{Text: "y", Assets: assets("2")})
	if reply.Outcome != intake.OutcomeRejected || second.Last() != "The queue is full (max: 1), please try again later." {
		t.Fatalf("unexpected reply %+v / %q", reply, second.Last())
	}
	if f.queue.Len() != 1 || f.worker.count() != 1 {
		t.Fatalf("expected one queued request and one trigger, len=%d triggers=%d", f.queue.Len(), f.worker.count())
	}
}

func TestQueueFullAfterAssemblyDropsPending(t *testing.T) {
	f := newFixture(t, testsupport.WithQueueCapacity(1))
	filler := testsupport.NewSession("a", "c", 0)
	session := testsupport.NewSession("b", "c", 0)

	f.intake.HandleCommand(context.Background(), session, intake.Command{Text: "x"})
	f.intake.HandleCommand(context.Background(), filler, intake.Command{Text: "y", Assets: assets("1")})
	reply := f.intake.HandleMessage(context.Background(), session, assets("late"))
	if reply.Outcome != intake.OutcomeRejected {
		t.Fatalf("expected rejection, got %+v", reply)
	}
	if f.assembler.Len() != 0 {
		t.Fatal("expected pending assembly removed even though the queue was full")
	}
	if r := f.intake.HandleMessage(context.Background(), session, assets("again")); r.Handled() {
		t.Fatalf("expected follow-up ignored, got %+v", r)
	}
}

func TestRawFlagAndBypassPhrase(t *testing.T) {
	tests := []struct {
		name string
		cmd  intake.Command
		want prompt.Mode
	}{
		{"raw flag", intake.Command{Text: "make it red", Raw: true, Assets: assets("a")}, prompt.ModeRaw},
		{"bypass phrase", intake.Command{Text: "Remove Clothes", Assets: assets("a")}, prompt.ModeRaw},
		{"bypass after alias", intake.Command{Text: "edit remove clothes", Assets: assets("a")}, prompt.ModeRaw},
		{"translate only", intake.Command{Text: "rouge", TranslateOnly: true, Assets: assets("a")}, prompt.ModeTranslate},
		{"default", intake.Command{Text: "rouge", Assets: assets("a")}, prompt.ModeEngineer},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.intake.HandleCommand(context.Background(), testsupport.NewSession("u", "c", 0), tc.cmd)
			req, ok := f.queue.TryClaim()
			if !ok || req.Mode != tc.want {
				t.Fatalf("expected mode %s, got %+v", tc.want, req)
			}
		})
	}
}

func TestSufficientCommandKeepsOtherPending(t *testing.T) {
	f := newFixture(t)
	session := testsupport.NewSession("alice", "c", 1)

	f.intake.HandleCommand(context.Background(), session, intake.Command{Text: "blend mix"})
	f.intake.HandleCommand(context.Background(), session, intake.Command{Text: "quick", Assets: assets("a")})
	if f.assembler.Len() != 1 {
		t.Fatalf("expected earlier assembly untouched, got %d", f.assembler.Len())
	}
	if f.queue.Len() != 1 {
		t.Fatalf("expected direct request queued, got %d", f.queue.Len())
	}
}
