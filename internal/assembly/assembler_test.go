package assembly_test

import (
	"context"
	"testing"
	"time"

	"easel/internal/assembly"
	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/prompt"
)

type stubSession struct{ requester, channel string }

func (s stubSession) RequesterID() string                     { return s.requester }
func (s stubSession) ChannelID() string                       { return s.channel }
func (s stubSession) Authority() int                          { return 0 }
func (s stubSession) Send(context.Context, string) error      { return nil }
func (s stubSession) SendImage(context.Context, string) error { return nil }

func blendProfile() config.WorkflowProfile {
	return config.WorkflowProfile{Alias: "blend", LoadImageNodeIDs: []string{"12", "13"}, PositivePromptNodeID: "6"}
}

func asset(url string) []chat.Asset { return []chat.Asset{{URL: url}} }

func TestCompleteInputBypassesPending(t *testing.T) {
	a := assembly.New(nil)
	session := stubSession{"u", "c"}

	res := a.Begin(session, blendProfile(), "mix", prompt.ModeEngineer, []chat.Asset{{URL: "1"}, {URL: "2"}, {URL: "3"}})
	if res.Outcome != assembly.Ready || res.Request == nil {
		t.Fatalf("expected ready request, got %+v", res)
	}
	if len(res.Request.Assets) != 2 || res.Request.Assets[1].URL != "2" {
		t.Fatalf("expected first two assets, got %+v", res.Request.Assets)
	}
	if a.Len() != 0 {
		t.Fatalf("expected no pending assemblies, got %d", a.Len())
	}
}

func TestMultiTurnAssembly(t *testing.T) {
	a := assembly.New(nil)
	session := stubSession{"u", "c"}

	res := a.Begin(session, blendProfile(), "mix", prompt.ModeTranslate, nil)
	if res.Outcome != assembly.AwaitingAsset || res.Next != 1 || res.Required != 2 {
		t.Fatalf("expected prompt for asset 1 of 2, got %+v", res)
	}
	pending, ok := a.Pending(assembly.KeyOf(session))
	if !ok || len(pending.Collected) != 0 || pending.Required != 2 {
		t.Fatalf("unexpected pending %+v", pending)
	}

	res = a.Continue(session, []chat.Asset{{URL: "first"}, {URL: "dropped"}})
	if res.Outcome != assembly.AwaitingAsset || res.Next != 2 {
		t.Fatalf("expected prompt for asset 2 of 2, got %+v", res)
	}

	res = a.Continue(session, asset("second"))
	if res.Outcome != assembly.Ready {
		t.Fatalf("expected ready, got %+v", res)
	}
	req := res.Request
	if len(req.Assets) != 2 || req.Assets[0].URL != "first" || req.Assets[1].URL != "second" {
		t.Fatalf("expected assets in submission order, got %+v", req.Assets)
	}
	if req.Text != "mix" || req.Mode != prompt.ModeTranslate || req.Profile.Alias != "blend" {
		t.Fatalf("expected stored fields carried over, got %+v", req)
	}
	if _, ok := a.Pending(assembly.KeyOf(session)); ok {
		t.Fatal("expected pending assembly removed")
	}
}

func TestContinueIgnoresUnrelatedInteractions(t *testing.T) {
	a := assembly.New(nil)
	owner := stubSession{"u", "c"}
	a.Begin(owner, blendProfile(), "mix", prompt.ModeRaw, nil)

	if res := a.Continue(stubSession{"u", "other"}, asset("x")); res.Outcome != assembly.Ignored {
		t.Fatalf("expected other channel ignored, got %+v", res)
	}
	if res := a.Continue(owner, nil); res.Outcome != assembly.Ignored {
		t.Fatalf("expected asset-less interaction ignored, got %+v", res)
	}
	if res := a.Continue(stubSession{"stranger", "c"}, nil); res.Outcome != assembly.Ignored {
		t.Fatalf("expected no-pending interaction ignored, got %+v", res)
	}
	pending, _ := a.Pending(assembly.KeyOf(owner))
	if len(pending.Collected) != 0 {
		t.Fatalf("expected nothing collected, got %+v", pending.Collected)
	}
}

func TestBeginReplacesExistingAssembly(t *testing.T) {
	a := assembly.New(nil)
	session := stubSession{"u", "c"}
	a.Begin(session, blendProfile(), "first", prompt.ModeRaw, nil)
	a.Continue(session, asset("1"))

	a.Begin(session, blendProfile(), "second", prompt.ModeRaw, asset("ignored"))
	pending, ok := a.Pending(assembly.KeyOf(session))
	if !ok || pending.Text != "second" || len(pending.Collected) != 0 {
		t.Fatalf("expected fresh assembly, got %+v", pending)
	}
	if a.Len() != 1 {
		t.Fatalf("expected one pending assembly, got %d", a.Len())
	}
}

func TestAssemblyForEveryRequiredCount(t *testing.T) {
	for n := 1; n <= 4; n++ {
		slots := make([]string, n)
		for i := range slots {
			slots[i] = string(rune('a' + i))
		}
		profile := config.WorkflowProfile{Alias: "p", LoadImageNodeIDs: slots}
		a := assembly.New(nil)
		session := stubSession{"u", "c"}

		a.Begin(session, profile, "", prompt.ModeRaw, nil)
		var res assembly.Result
		for i := 0; i < n; i++ {
			res = a.Continue(session, asset(slots[i]))
		}
		if res.Outcome != assembly.Ready || len(res.Request.Assets) != n {
			t.Fatalf("n=%d: expected ready request with %d assets, got %+v", n, n, res)
		}
		for i, got := range res.Request.Assets {
			if got.URL != slots[i] {
				t.Fatalf("n=%d: asset %d out of order: %q", n, i, got.URL)
			}
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	a := assembly.New(nil, assembly.WithTTL(time.Minute), assembly.WithClock(clock))
	session := stubSession{"u", "c"}

	a.Begin(session, blendProfile(), "mix", prompt.ModeRaw, nil)
	now = now.Add(30 * time.Second)
	if res := a.Continue(session, asset("1")); res.Outcome != assembly.AwaitingAsset {
		t.Fatalf("expected assembly alive within ttl, got %+v", res)
	}

	now = now.Add(2 * time.Minute)
	if res := a.Continue(session, asset("2")); res.Outcome != assembly.Ignored {
		t.Fatalf("expected expired assembly ignored, got %+v", res)
	}
	if a.Len() != 0 {
		t.Fatalf("expected expired assembly removed, got %d", a.Len())
	}

	a.Begin(stubSession{"v", "c"}, blendProfile(), "mix", prompt.ModeRaw, nil)
	now = now.Add(2 * time.Minute)
	if removed := a.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to remove 1, got %d", removed)
	}
}

func TestNoTTLKeepsAssemblies(t *testing.T) {
	now := time.Now()
	a := assembly.New(nil, assembly.WithClock(func() time.Time { return now }))
	a.Begin(stubSession{"u", "c"}, blendProfile(), "mix", prompt.ModeRaw, nil)
	now = now.Add(365 * 24 * time.Hour)
	if removed := a.Sweep(); removed != 0 || a.Len() != 1 {
		t.Fatalf("expected assembly retained, removed=%d len=%d", removed, a.Len())
	}
}
