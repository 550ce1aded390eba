package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	BaseDir  string `toml:"base_dir"`
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// ComfyUI contains connection settings for the remote job backend.
type ComfyUI struct {
	ServerAddress  string `toml:"server_address"`
	RequestTimeout int    `toml:"request_timeout"`
	Secure         bool   `toml:"secure"`
}

// Queue contains admission settings for the request queue.
type Queue struct {
	Capacity int `toml:"capacity"`
	// AssemblyTTL expires idle multi-turn assemblies after this many seconds.
	// Zero keeps them until completed.
	AssemblyTTL int `toml:"assembly_ttl"`
}

// PromptEngineer contains settings for the optional text rewriting service.
type PromptEngineer struct {
	Enable         bool   `toml:"enable"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	BypassPhrase   string `toml:"bypass_phrase"`
}

// WorkflowProfile identifies one job template and how requests fill it.
type WorkflowProfile struct {
	Alias           string `toml:"alias"`
	IsDefault       bool   `toml:"is_default"`
	PermissionLevel int    `toml:"permission_level"`
	FilePath        string `toml:"file_path"`
	// LoadImageNodeIDs lists the asset slots in the order assets are collected.
	LoadImageNodeIDs []string `toml:"load_image_node_ids"`
	// LoadImageNodeID is the single-slot spelling; normalize folds it into
	// LoadImageNodeIDs.
	LoadImageNodeID      string `toml:"load_image_node_id,omitempty"`
	PositivePromptNodeID string `toml:"positive_prompt_node_id"`
	OutputNodeID         string `toml:"output_node_id,omitempty"`
}

// RequiredAssets returns how many assets a request for this profile needs.
func (p WorkflowProfile) RequiredAssets() int {
	return len(p.LoadImageNodeIDs)
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobFailures    bool   `toml:"job_failures"`
	JobCompletions bool   `toml:"job_completions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Config encapsulates all configuration values for easel.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - ComfyUI: backend address and per-job timeout
//   - Queue: capacity and multi-turn assembly expiry
//   - PromptEngineer: DeepSeek translation / prompt engineering
//   - Workflows: the selectable workflow profiles
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - Metrics: Prometheus exposition
type Config struct {
	Paths          Paths             `toml:"paths"`
	ComfyUI        ComfyUI           `toml:"comfyui"`
	Queue          Queue             `toml:"queue"`
	PromptEngineer PromptEngineer    `toml:"prompt_engineer"`
	Workflows      []WorkflowProfile `toml:"workflows"`
	Notifications  Notifications     `toml:"notifications"`
	Logging        Logging           `toml:"logging"`
	Metrics        Metrics           `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("easel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Profile returns the workflow profile registered under alias.
func (c *Config) Profile(alias string) (WorkflowProfile, bool) {
	for _, profile := range c.Workflows {
		if profile.Alias == alias {
			return profile, true
		}
	}
	return WorkflowProfile{}, false
}

// DefaultProfile returns the profile flagged is_default, falling back to the
// first configured profile.
func (c *Config) DefaultProfile() (WorkflowProfile, bool) {
	for _, profile := range c.Workflows {
		if profile.IsDefault {
			return profile, true
		}
	}
	if len(c.Workflows) > 0 {
		return c.Workflows[0], true
	}
	return WorkflowProfile{}, false
}

// RequestTimeout returns the per-job monitor timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.ComfyUI.RequestTimeout) * time.Second
}

// AssemblyTTL returns the idle expiry for multi-turn assemblies (zero disables it).
func (c *Config) AssemblyTTL() time.Duration {
	return time.Duration(c.Queue.AssemblyTTL) * time.Second
}

// TemplatePath resolves a profile's template path against the base directory.
func (c *Config) TemplatePath(profile WorkflowProfile) string {
	path := strings.TrimSpace(profile.FilePath)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Paths.BaseDir, path)
}

// HistoryPath returns the location of the job history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// DaemonLogPath returns the file easeld appends its log records to.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "easeld.log")
}

// LockPath returns the location of the daemon instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "easeld.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
