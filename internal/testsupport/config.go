package testsupport

import (
	"path/filepath"
	"testing"

	"easel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It registers one default single-asset profile ("edit") and one two-asset
// profile ("blend") and writes their templates under the base directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.BaseDir = base
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Metrics.Enabled = false
	cfgVal.Workflows = []config.WorkflowProfile{
		{
			Alias:                "edit",
			IsDefault:            true,
			FilePath:             "workflows/edit.json",
			LoadImageNodeIDs:     []string{"12"},
			PositivePromptNodeID: "6",
		},
		{
			Alias:                "blend",
			PermissionLevel:      1,
			FilePath:             "workflows/blend.json",
			LoadImageNodeIDs:     []string{"12", "13"},
			PositivePromptNodeID: "6",
		},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, profile := range builder.cfg.Workflows {
		path := builder.cfg.TemplatePath(profile)
		if path == "" || filepath.Dir(path) != filepath.Join(base, "workflows") {
			continue
		}
		WriteTemplate(t, path, TemplateJSON)
	}

	return builder.cfg
}

// WithProfiles replaces the configured workflow profiles. Templates for
// profiles under workflows/ are written with TemplateJSON.
func WithProfiles(profiles ...config.WorkflowProfile) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflows = profiles
	}
}

// WithQueueCapacity overrides the queue capacity.
func WithQueueCapacity(capacity int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Capacity = capacity
	}
}

// WithBackend points the config at a test backend (host:port) with a monitor
// timeout in seconds.
func WithBackend(address string, timeoutSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ComfyUI.ServerAddress = address
		if timeoutSeconds > 0 {
			b.cfg.ComfyUI.RequestTimeout = timeoutSeconds
		}
	}
}

// WithPromptEngineer enables the rewriting service against baseURL.
func WithPromptEngineer(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PromptEngineer.Enable = true
		b.cfg.PromptEngineer.BaseURL = baseURL
		b.cfg.PromptEngineer.APIKey = apiKey
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.BaseDir
}
