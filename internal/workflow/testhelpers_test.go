package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/history"
	"easel/internal/metrics"
	"easel/internal/notifications"
	"easel/internal/prompt"
	"easel/internal/queue"
	"easel/internal/services"
	"easel/internal/services/comfy"
	"easel/internal/template"
	"easel/internal/testsupport"
	"easel/internal/workflow"
)

// script drives the event stream for one submitted job.
type script func(promptID string, events chan<- comfy.Event)

func emitImages(node string, filenames ...string) script {
	return func(promptID string, events chan<- comfy.Event) {
		images := make([]comfy.OutputImage, 0, len(filenames))
		for _, name := range filenames {
			images = append(images, comfy.OutputImage{Filename: name, Type: "output"})
		}
		events <- comfy.Event{Type: comfy.EventExecuted, PromptID: "someone-else", Node: node, Images: images}
		events <- comfy.Event{Type: comfy.EventExecuted, PromptID: promptID, Node: "7"}
		events <- comfy.Event{Type: comfy.EventExecuted, PromptID: promptID, Node: node, Images: images}
	}
}

func emitError(message string) script {
	return func(promptID string, events chan<- comfy.Event) {
		events <- comfy.Event{Type: comfy.EventExecutionError, PromptID: promptID, Message: message}
	}
}

func emitDone() script {
	return func(promptID string, events chan<- comfy.Event) {
		events <- comfy.Event{Type: comfy.EventExecutionDone, PromptID: promptID}
	}
}

func emitNothing() script {
	return func(string, chan<- comfy.Event) {}
}

type submission struct {
	clientID string
	workflow map[string]map[string]any
}

func (s submission) input(node, field string) any {
	n, ok := s.workflow[node]
	if !ok {
		return nil
	}
	inputs, _ := n["inputs"].(map[string]any)
	return inputs[field]
}

type fakeStream struct {
	events chan comfy.Event
}

func (s *fakeStream) Events() <-chan comfy.Event { return s.events }
func (s *fakeStream) Close() error               { return nil }

type fakeBackend struct {
	mu          sync.Mutex
	scripts     []script
	streams     map[string]*fakeStream
	uploads     []string
	submissions []submission
	uploadErr   error
	queueErr    error
}

func newFakeBackend(scripts ...script) *fakeBackend {
	return &fakeBackend{scripts: scripts, streams: make(map[string]*fakeStream)}
}

func (b *fakeBackend) UploadImage(_ context.Context, filename string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	stored := "stored-" + filename
	b.uploads = append(b.uploads, string(data))
	return stored, nil
}

func (b *fakeBackend) QueuePrompt(_ context.Context, raw json.RawMessage, clientID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queueErr != nil {
		return "", b.queueErr
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", err
	}
	b.submissions = append(b.submissions, submission{clientID: clientID, workflow: decoded})
	promptID := fmt.Sprintf("prompt-%d", len(b.submissions))
	run := emitImages("9", "out.png")
	if len(b.scripts) > 0 {
		run = b.scripts[0]
		b.scripts = b.scripts[1:]
	}
	stream := b.streams[clientID]
	go run(promptID, stream.events)
	return promptID, nil
}

func (b *fakeBackend) Subscribe(_ context.Context, clientID string) (workflow.EventStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	stream := &fakeStream{events: make(chan comfy.Event, 16)}
	b.streams[clientID] = stream
	return stream, nil
}

func (b *fakeBackend) ImageURL(img comfy.OutputImage) string {
	return "http://backend.test/view?filename=" + img.Filename
}

func (b *fakeBackend) Submissions() []submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]submission(nil), b.submissions...)
}

func (b *fakeBackend) Uploads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploads...)
}

type fakeFetcher struct {
	fail    map[string]error
	panicOn string
	// hook runs on every fetch, outside any fakeFetcher state.
	hook func()
	// blocked, when set, is closed once a fetch starts waiting for its
	// context to end. blockURL limits that to one asset; empty holds all.
	blocked  chan struct{}
	blockURL string
}

func (f *fakeFetcher) Fetch(ctx context.Context, asset chat.Asset) ([]byte, error) {
	if f.hook != nil {
		f.hook()
	}
	if f.blocked != nil && (f.blockURL == "" || f.blockURL == asset.URL) {
		close(f.blocked)
		<-ctx.Done()
		return nil, fmt.Errorf("get %s: %w", asset.URL, ctx.Err())
	}
	if f.panicOn != "" && asset.URL == f.panicOn {
		panic("fetcher exploded")
	}
	if err := f.fail[asset.URL]; err != nil {
		return nil, err
	}
	return []byte("bytes-of-" + asset.URL), nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	errors    int
}

func (n *recordingNotifier) NotifyJobCompleted(_ context.Context, job notifications.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, job.RequestID)
	return nil
}

func (n *recordingNotifier) NotifyJobFailed(_ context.Context, job notifications.Job, kind string, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, kind)
	return nil
}

func (n *recordingNotifier) NotifyError(context.Context, error, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors++
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errors
}

func (n *recordingNotifier) Failed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.failed...)
}

type harness struct {
	cfg      *config.Config
	queue    *queue.Queue
	backend  *fakeBackend
	fetcher  *fakeFetcher
	history  *history.Store
	manager  *workflow.Manager
	notifier *recordingNotifier
	metrics  *metrics.Prom
}

func newHarness(t *testing.T, backend *fakeBackend, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	h := &harness{
		cfg:      cfg,
		queue:    queue.New(cfg.Queue.Capacity),
		backend:  backend,
		fetcher:  &fakeFetcher{fail: map[string]error{}},
		history:  testsupport.MustOpenHistory(t, cfg),
		notifier: &recordingNotifier{},
		metrics:  metrics.NewProm("easel"),
	}
	h.manager = workflow.NewManager(workflow.Deps{
		Config:    cfg,
		Queue:     h.queue,
		Templates: templateStore(cfg),
		Backend:   backend,
		Fetcher:   h.fetcher,
		Prompt:    prompt.NewPipeline(prompt.Options{}),
		History:   h.history,
		Notifier:  h.notifier,
		Metrics:   h.metrics,
	})
	t.Cleanup(h.manager.Stop)
	return h
}

func (h *harness) enqueue(t *testing.T, alias, text string, session chat.Session, urls ...string) *queue.Request {
	t.Helper()
	profile, ok := h.cfg.Profile(alias)
	if !ok {
		t.Fatalf("profile %q not configured", alias)
	}
	assets := make([]chat.Asset, 0, len(urls))
	for _, url := range urls {
		assets = append(assets, chat.Asset{URL: url})
	}
	req := queue.NewRequest(profile, text, prompt.ModeRaw, assets, session)
	if _, err := h.queue.Enqueue(req); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return req
}

func (h *harness) entry(t *testing.T, requestID string) *history.Entry {
	t.Helper()
	entry, err := h.history.Get(context.Background(), requestID)
	if err != nil {
		t.Fatalf("history.Get: %v", err)
	}
	if entry == nil {
		t.Fatalf("no history entry for %s", requestID)
	}
	return entry
}

func templateStore(cfg *config.Config) *template.Store {
	return template.NewStore(cfg.Paths.BaseDir)
}

var (
	errFetch  = errors.New("asset host unreachable")
	errUpload = services.Wrap(services.ErrUpload, "comfy", "upload image", "x.png", errors.New("http 500: disk full"))
	errSubmit = services.Wrap(services.ErrSubmission, "comfy", "queue prompt", "", errors.New("http 400: invalid prompt"))
)
