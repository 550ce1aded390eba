package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/history"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/notifications"
	"easel/internal/prompt"
	"easel/internal/queue"
	"easel/internal/services/comfy"
	"easel/internal/template"
)

// Backend is the job backend the worker submits to. comfy.Client satisfies it
// through NewComfyBackend.
type Backend interface {
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
	QueuePrompt(ctx context.Context, workflow json.RawMessage, clientID string) (string, error)
	Subscribe(ctx context.Context, clientID string) (EventStream, error)
	ImageURL(img comfy.OutputImage) string
}

// EventStream is an open backend event subscription.
type EventStream interface {
	Events() <-chan comfy.Event
	Close() error
}

type comfyBackend struct {
	*comfy.Client
}

// NewComfyBackend adapts a comfy.Client to Backend.
func NewComfyBackend(client *comfy.Client) Backend {
	return comfyBackend{Client: client}
}

func (b comfyBackend) Subscribe(ctx context.Context, clientID string) (EventStream, error) {
	sub, err := b.Client.Subscribe(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// TemplateLoader returns a fresh, validated template graph.
type TemplateLoader interface {
	Load(path string) (template.Workflow, error)
}

// AssetFetcher downloads a collected asset.
type AssetFetcher interface {
	Fetch(ctx context.Context, asset chat.Asset) ([]byte, error)
}

// PromptTransformer rewrites request text before it is written into the template.
type PromptTransformer interface {
	Transform(ctx context.Context, text string, mode prompt.Mode, notifier prompt.Notifier) string
}

// HistoryRecorder persists terminal outcomes.
type HistoryRecorder interface {
	Record(ctx context.Context, entry history.Entry) (int64, error)
}

// Deps bundles the collaborators a Manager drives.
type Deps struct {
	Config    *config.Config
	Queue     *queue.Queue
	Templates TemplateLoader
	Backend   Backend
	Fetcher   AssetFetcher
	Prompt    PromptTransformer
	History   HistoryRecorder
	Notifier  notifications.Service
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// Manager is the single worker. At most one request runs at a time; finishing
// a request immediately claims the next one.
type Manager struct {
	cfg       *config.Config
	queue     *queue.Queue
	templates TemplateLoader
	backend   Backend
	fetcher   AssetFetcher
	prompt    PromptTransformer
	history   HistoryRecorder
	notifier  notifications.Service
	metrics   metrics.Recorder
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// busyMu orders worker_busy publishes so the gauge settles on the
	// queue's final claim state.
	busyMu sync.Mutex

	mu         sync.RWMutex
	stopped    bool
	current    *jobState
	lastErr    error
	lastResult *Result
	processed  int
	failed     int
}

// NewManager constructs a worker. Missing optional collaborators (History,
// Notifier, Metrics, Logger) are replaced with no-ops.
func NewManager(deps Deps) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       deps.Config,
		queue:     deps.Queue,
		templates: deps.Templates,
		backend:   deps.Backend,
		fetcher:   deps.Fetcher,
		prompt:    deps.Prompt,
		history:   deps.History,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		logger:    logging.NewComponentLogger(deps.Logger, "workflow"),
		ctx:       ctx,
		cancel:    cancel,
	}
	if m.notifier == nil {
		m.notifier = notifications.NewService(&config.Config{})
	}
	if m.metrics == nil {
		m.metrics = metrics.Noop{}
	}
	return m
}

// Trigger starts the worker on the head of the queue unless it is already
// busy, the queue is empty, or the manager has stopped. It never blocks on
// job execution.
func (m *Manager) Trigger() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	req, ok := m.queue.TryClaim()
	if !ok {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	m.publishBusy()
	m.metrics.SetQueueDepth(m.queue.Len())
	go m.run(req)
}

func (m *Manager) run(req *queue.Request) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.recoverJob(req, r)
		}
		m.setCurrent(nil)
		m.queue.Release()
		m.publishBusy()
		m.Trigger()
	}()
	m.process(m.ctx, req)
}

// publishBusy reports the queue's claim state as read under busyMu, not the
// caller's view of it.
func (m *Manager) publishBusy() {
	m.busyMu.Lock()
	defer m.busyMu.Unlock()
	m.metrics.SetWorkerBusy(m.queue.Busy())
}

// Wait blocks until no job is running and none is about to be claimed.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stop refuses further claims, cancels the running job, and waits for it to
// finish. Requests still waiting in the queue are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	if waiting := m.queue.Len(); waiting > 0 {
		logging.WarnWithContext(m.logger, "queued requests dropped at shutdown", "queue_dropped",
			logging.Int("waiting", waiting),
			logging.String(logging.FieldImpact, "requesters must resend their commands"),
			logging.String(logging.FieldErrorHint, "queue contents are not persisted across restarts"),
		)
	}
}

// Running reports whether the manager still accepts work.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.stopped
}

// Result is the outcome of the most recently finished request.
type Result struct {
	RequestID  string        `json:"request_id"`
	Profile    string        `json:"profile"`
	Status     queue.Status  `json:"status"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Outputs    int           `json:"outputs"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}

// StatusSummary represents lightweight worker diagnostics.
type StatusSummary struct {
	Running   bool         `json:"running"`
	Busy      bool         `json:"busy"`
	Stage     queue.Status `json:"stage,omitempty"`
	ActiveID  string       `json:"active_id,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	Last      *Result      `json:"last,omitempty"`
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
}

// Status returns the latest worker information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := StatusSummary{
		Running:   !m.stopped,
		Busy:      m.current != nil,
		Processed: m.processed,
		Failed:    m.failed,
	}
	if m.current != nil {
		summary.Stage = m.current.status
		summary.ActiveID = m.current.req.ID
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastResult != nil {
		last := *m.lastResult
		summary.Last = &last
	}
	return summary
}

func (m *Manager) setCurrent(job *jobState) {
	m.mu.Lock()
	m.current = job
	m.mu.Unlock()
}

func (m *Manager) setStage(job *jobState, status queue.Status) {
	m.mu.Lock()
	job.status = status
	m.mu.Unlock()
	job.logger.Debug("request stage advanced", logging.String(logging.FieldStage, string(status)))
}

func (m *Manager) recordResult(result Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastResult = &result
	m.processed++
	if err != nil {
		m.failed++
		m.lastErr = err
	}
}

var errPanic = errors.New("worker panic")
