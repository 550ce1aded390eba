package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"easel/internal/assembly"
	"easel/internal/chat"
	"easel/internal/config"
	"easel/internal/daemon"
	"easel/internal/history"
	"easel/internal/intake"
	"easel/internal/logging"
	"easel/internal/metrics"
	"easel/internal/notifications"
	"easel/internal/preflight"
	"easel/internal/prompt"
	"easel/internal/queue"
	"easel/internal/services/comfy"
	"easel/internal/services/deepseek"
	"easel/internal/template"
	"easel/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipPreflight disables the startup readiness checks.
	SkipPreflight bool
}

// Run starts the easel daemon and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.DaemonLogPath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if !opts.SkipPreflight {
		logPreflight(signalCtx, logger, cfg)
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "easeld.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build daemon", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and whether another easeld holds the lock"),
			logging.String(logging.FieldImpact, "no requests will be accepted"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("easel daemon shutting down")
	return nil
}

// Build wires every component of the daemon from cfg. The history store is
// owned by the returned daemon and closed by Daemon.Close.
func Build(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	var recorder metrics.Recorder = metrics.Noop{}
	deps := daemon.Deps{Config: cfg, History: store, Logger: logger}
	if cfg.Metrics.Enabled {
		prom := metrics.NewProm(cfg.Metrics.Namespace)
		recorder = prom
		deps.MetricsHandler = prom.Handler()
	}

	notifier := notifications.NewService(cfg)
	pipeline := prompt.NewPipeline(prompt.Options{
		Enabled:      cfg.PromptEngineer.Enable,
		BypassPhrase: cfg.PromptEngineer.BypassPhrase,
		Rewriter:     newRewriter(cfg.PromptEngineer),
		Logger:       logger,
	})
	backend := workflow.NewComfyBackend(comfy.NewClient(comfy.Config{
		ServerAddress:  cfg.ComfyUI.ServerAddress,
		Secure:         cfg.ComfyUI.Secure,
		RequestTimeout: cfg.RequestTimeout(),
	}))

	q := queue.New(cfg.Queue.Capacity)
	assembler := assembly.New(logger, assembly.WithTTL(cfg.AssemblyTTL()))
	worker := workflow.NewManager(workflow.Deps{
		Config:    cfg,
		Queue:     q,
		Templates: template.NewStore(cfg.Paths.BaseDir),
		Backend:   backend,
		Fetcher:   chat.NewFetcher(cfg.RequestTimeout()),
		Prompt:    pipeline,
		History:   store,
		Notifier:  notifier,
		Metrics:   recorder,
		Logger:    logger,
	})
	in := intake.New(intake.Options{
		Config:    cfg,
		Assembler: assembler,
		Queue:     q,
		Modes:     pipeline,
		Worker:    worker,
		Metrics:   recorder,
		Logger:    logger,
	})

	deps.Queue = q
	deps.Assembler = assembler
	deps.Intake = in
	deps.Worker = worker
	deps.Notifier = notifier
	deps.Metrics = recorder
	d, err := daemon.New(deps)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

// newRewriter returns nil when no credential is configured so the pipeline
// reports the missing key instead of failing every call.
func newRewriter(cfg config.PromptEngineer) prompt.Rewriter {
	if cfg.APIKey == "" {
		return nil
	}
	return deepseek.NewClient(deepseek.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
	})
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "requests depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run easel preflight for details"),
		)
	}
	logger.Info("preflight complete",
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
	)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	aliases := make([]string, 0, len(cfg.Workflows))
	for _, profile := range cfg.Workflows {
		aliases = append(aliases, profile.Alias)
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.ComfyUI.ServerAddress),
		logging.Bool("backend_secure", cfg.ComfyUI.Secure),
		logging.Duration("request_timeout", cfg.RequestTimeout()),
		logging.Int("queue_capacity", cfg.Queue.Capacity),
		logging.Duration("assembly_ttl", cfg.AssemblyTTL()),
		logging.Bool("prompt_engineer_enabled", cfg.PromptEngineer.Enable),
		logging.Bool("prompt_engineer_key_present", cfg.PromptEngineer.APIKey != ""),
		logging.Any("profiles", aliases),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
