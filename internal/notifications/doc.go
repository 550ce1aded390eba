// Package notifications pushes job outcomes to operators via ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Completion and failure pushes are gated independently by the
// notifications.job_completions and notifications.job_failures settings.
// Callers log notification errors and carry on; a failed push never changes
// a job's outcome.
package notifications
