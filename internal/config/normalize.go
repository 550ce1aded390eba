package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeComfyUI()
	c.normalizePromptEngineer()
	c.normalizeWorkflows()
	c.normalizeLogging()
	if strings.TrimSpace(c.Metrics.Namespace) == "" {
		c.Metrics.Namespace = defaultMetricsNamespace
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		c.Paths.BaseDir = defaultBaseDir
	}
	if c.Paths.BaseDir, err = expandPath(c.Paths.BaseDir); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeComfyUI() {
	address := strings.TrimSpace(c.ComfyUI.ServerAddress)
	address = strings.TrimPrefix(address, "http://")
	address = strings.TrimPrefix(address, "https://")
	c.ComfyUI.ServerAddress = strings.TrimRight(address, "/")
	if c.ComfyUI.ServerAddress == "" {
		c.ComfyUI.ServerAddress = defaultServerAddress
	}
}

func (c *Config) normalizePromptEngineer() {
	if c.PromptEngineer.APIKey == "" {
		if value, ok := os.LookupEnv(defaultPromptAPIKeyEnv); ok {
			c.PromptEngineer.APIKey = value
		}
	}
	c.PromptEngineer.APIKey = strings.TrimSpace(c.PromptEngineer.APIKey)
	c.PromptEngineer.BaseURL = strings.TrimSpace(c.PromptEngineer.BaseURL)
	if c.PromptEngineer.BaseURL == "" {
		c.PromptEngineer.BaseURL = defaultPromptBaseURL
	}
	c.PromptEngineer.Model = strings.TrimSpace(c.PromptEngineer.Model)
	if c.PromptEngineer.Model == "" {
		c.PromptEngineer.Model = defaultPromptModel
	}
	if c.PromptEngineer.TimeoutSeconds <= 0 {
		c.PromptEngineer.TimeoutSeconds = defaultPromptTimeoutSeconds
	}
	c.PromptEngineer.BypassPhrase = strings.TrimSpace(c.PromptEngineer.BypassPhrase)
}

func (c *Config) normalizeWorkflows() {
	for i := range c.Workflows {
		profile := &c.Workflows[i]
		profile.Alias = strings.TrimSpace(profile.Alias)
		profile.FilePath = strings.TrimSpace(profile.FilePath)
		profile.PositivePromptNodeID = strings.TrimSpace(profile.PositivePromptNodeID)
		profile.OutputNodeID = strings.TrimSpace(profile.OutputNodeID)

		ids := make([]string, 0, len(profile.LoadImageNodeIDs)+1)
		for _, id := range profile.LoadImageNodeIDs {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if legacy := strings.TrimSpace(profile.LoadImageNodeID); legacy != "" && len(ids) == 0 {
			ids = append(ids, legacy)
		}
		profile.LoadImageNodeIDs = ids
		profile.LoadImageNodeID = ""
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
