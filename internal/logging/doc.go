// Package logging assembles structured slog loggers and formatting helpers used
// across easel services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so lifecycle code can tag log
// lines with correlation IDs, backend job IDs, profiles, and requesters. The
// package also provides a no-op logger for tests and wiring code that cannot fail.
package logging
