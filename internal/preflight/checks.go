package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"easel/internal/config"
	"easel/internal/services/comfy"
	"easel/internal/services/deepseek"
	"easel/internal/template"
)

// CheckBackend verifies that the ComfyUI server answers its system stats endpoint.
func CheckBackend(ctx context.Context, cfg *config.Config) Result {
	const name = "ComfyUI backend"

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := comfy.NewClient(comfy.Config{
		ServerAddress:  cfg.ComfyUI.ServerAddress,
		Secure:         cfg.ComfyUI.Secure,
		RequestTimeout: 5 * time.Second,
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", client.BaseURL(), summarizeError(err, "backend"))}
	}
	return Result{Name: name, Passed: true, Detail: client.BaseURL() + " (reachable)"}
}

// CheckPromptEngineer verifies that the DeepSeek API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckPromptEngineer(ctx context.Context, cfg config.PromptEngineer) Result {
	const name = "Prompt engineer"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (set prompt_engineer.api_key or DEEPSEEK_API_KEY)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := deepseek.NewClient(deepseek.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, deepseek.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err, "DeepSeek API")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckTemplates verifies every profile's template is readable and passes
// template validation.
func CheckTemplates(cfg *config.Config) []Result {
	store := template.NewStore(cfg.Paths.BaseDir)
	results := make([]Result, 0, len(cfg.Workflows))
	for _, profile := range cfg.Workflows {
		results = append(results, CheckTemplate(store, profile.Alias, cfg.TemplatePath(profile)))
	}
	return results
}

// CheckTemplate verifies a single template file.
func CheckTemplate(store *template.Store, alias, path string) Result {
	name := fmt.Sprintf("Workflow %q", alias)
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	wf, err := store.Load(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d nodes)", path, len(wf))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeError produces a human-readable summary for health check failures.
func summarizeError(err error, target string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", target)
	}
	return err.Error()
}
