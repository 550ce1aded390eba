package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"easel/internal/api"
	"easel/internal/assembly"
	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/history"
	"easel/internal/intake"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/notifications"
	"easel/internal/queue"
	"easel/internal/workflow"
)

const minSweepInterval = time.Second

// Deps wires a Daemon. Config, History, Queue, Assembler, Intake, and Worker
// are required.
type Deps struct {
	Config    *config.Config
	History   *history.Store
	Queue     *queue.Queue
	Assembler *assembly.Assembler
	Intake    *intake.Intake
	Worker    *workflow.Manager
	Notifier  notifications.Service
	Metrics   metrics.Recorder
	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
	// ReplyClient posts chat replies; nil uses the bridge default.
	ReplyClient *http.Client
	Logger      *slog.Logger
}

// Daemon coordinates the background worker and the HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	history   *history.Store
	queue     *queue.Queue
	assembler *assembly.Assembler
	intake    *intake.Intake
	worker    *workflow.Manager
	notifier  notifications.Service
	metrics   metrics.Recorder
	replies   *http.Client

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	sweeper sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(deps Deps) (*Daemon, error) {
	if deps.Config == nil || deps.History == nil || deps.Queue == nil || deps.Assembler == nil || deps.Intake == nil || deps.Worker == nil {
		return nil, errors.New("daemon requires config, history, queue, assembler, intake, and worker")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(deps.Config)
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := deps.Config.LockPath()
	d := &Daemon{
		cfg:       deps.Config,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		history:   deps.History,
		queue:     deps.Queue,
		assembler: deps.Assembler,
		intake:    deps.Intake,
		worker:    deps.Worker,
		notifier:  notifier,
		metrics:   recorder,
		replies:   deps.ReplyClient,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(deps.Config, d, deps.MetricsHandler, logger)
	return d, nil
}

// Start acquires the daemon lock, opens the HTTP API, and starts the assembly
// sweeper when an expiry is configured.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another easel daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.startSweeper(runCtx)

	d.running.Store(true)
	d.logger.Info("easel daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()),
		logging.String("backend", d.cfg.ComfyUI.ServerAddress),
		logging.Int("profiles", len(d.cfg.Workflows)),
	)
	return nil
}

// Stop closes the HTTP API, stops the worker, and releases the daemon lock.
// The running job, if any, is canceled and recorded as failed.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.sweeper.Wait()
	d.worker.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("easel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, or "" when the API is disabled or
// not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

func (d *Daemon) startSweeper(ctx context.Context) {
	ttl := d.cfg.AssemblyTTL()
	if ttl <= 0 {
		return
	}
	interval := max(ttl/2, minSweepInterval)
	d.sweeper.Add(1)
	go func() {
		defer d.sweeper.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.SweepAssemblies()
			}
		}
	}()
}

// SweepAssemblies drops expired pending assemblies and refreshes the gauge.
func (d *Daemon) SweepAssemblies() int {
	removed := d.assembler.Sweep()
	d.metrics.SetPendingAssemblies(d.assembler.Len())
	if removed > 0 {
		d.logger.Info("expired pending assemblies dropped", logging.Int("count", removed))
	}
	return removed
}

// HandleInteraction routes one inbound chat interaction. Commands go to the
// command intake; plain messages may continue a pending assembly.
func (d *Daemon) HandleInteraction(ctx context.Context, in chat.Interaction) intake.Reply {
	session := chat.NewBridgeSession(in, d.replies, d.logger)
	if in.Command {
		return d.intake.HandleCommand(ctx, session, intake.Command{
			Text:          in.Text,
			Raw:           in.Raw,
			TranslateOnly: in.TranslateOnly,
			Assets:        in.Assets(),
		})
	}
	return d.intake.HandleMessage(ctx, session, in.Assets())
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		HistoryDBPath:     d.history.Path(),
		LockFilePath:      d.lockPath,
		Backend:           d.cfg.ComfyUI.ServerAddress,
		Worker:            api.FromStatusSummary(d.worker.Status()),
		Queue:             api.FromSnapshot(d.queue.Snapshot()),
		PendingAssemblies: d.assembler.Len(),
		HistoryStats:      map[string]int{},
	}
	stats, err := d.history.Stats(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "history stats unavailable", "history_stats_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status omits history counts"),
		)
		return status
	}
	status.HistoryStats = api.FromHistoryStats(stats)
	return status
}

// History returns up to limit finished jobs, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return d.history.Recent(ctx, limit)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
