package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateComfyUI(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorkflows(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateComfyUI() error {
	if strings.TrimSpace(c.ComfyUI.ServerAddress) == "" {
		return errors.New("comfyui.server_address must be set")
	}
	if c.ComfyUI.RequestTimeout <= 0 {
		return errors.New("comfyui.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Capacity <= 0 {
		return errors.New("queue.capacity must be positive")
	}
	if c.Queue.AssemblyTTL < 0 {
		return errors.New("queue.assembly_ttl must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflows() error {
	if len(c.Workflows) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("at least one [[workflows]] entry is required; edit %s (create with 'easel config init')", defaultPath)
	}
	seen := make(map[string]struct{}, len(c.Workflows))
	defaults := 0
	for i, profile := range c.Workflows {
		label := fmt.Sprintf("workflows[%d]", i)
		if profile.Alias == "" {
			return fmt.Errorf("%s.alias must be set", label)
		}
		if strings.ContainsAny(profile.Alias, " \t\n") {
			return fmt.Errorf("%s.alias %q must not contain whitespace", label, profile.Alias)
		}
		if _, ok := seen[profile.Alias]; ok {
			return fmt.Errorf("%s.alias %q is duplicated", label, profile.Alias)
		}
		seen[profile.Alias] = struct{}{}
		if profile.IsDefault {
			defaults++
		}
		if profile.FilePath == "" {
			return fmt.Errorf("%s.file_path must be set", label)
		}
		if len(profile.LoadImageNodeIDs) == 0 {
			return fmt.Errorf("%s.load_image_node_ids must list at least one node", label)
		}
		if profile.PositivePromptNodeID == "" {
			return fmt.Errorf("%s.positive_prompt_node_id must be set", label)
		}
		if profile.PermissionLevel < 0 {
			return fmt.Errorf("%s.permission_level must not be negative", label)
		}
	}
	if defaults > 1 {
		return errors.New("only one workflow may set is_default = true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
