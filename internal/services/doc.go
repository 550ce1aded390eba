// Package services defines shared utilities consumed by the job lifecycle and
// the external integrations beneath it.
//
// Key responsibilities:
//   - Context helpers that stamp correlation IDs, backend job IDs, profile
//     aliases, requester identities, and stage names for logging.
//   - Structured error markers plus the Wrap helper that classify a failed
//     request (template load, upload, submission, timeout, ...).
//
// Use these helpers when wiring new lifecycle steps so error reporting and
// observability stay uniform across the worker.
package services
