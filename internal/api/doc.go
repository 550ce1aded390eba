// Package api defines wire-format types, converters, and the HTTP client for
// the daemon API. It translates internal queue, worker, and history models
// into transport-friendly DTOs so the CLI and the chat bridge can consume them
// without coupling to internal types.
//
// # Key Types
//
// DaemonStatus: worker state, queue occupancy, pending assemblies, and history
// counts.
//
// QueueStatus/QueueItem: the active request and the waiting line.
//
// HistoryEntry: one finished job from the history ledger.
//
// InteractionResponse: how an inbound chat interaction was routed.
//
// # Converters
//
// FromSnapshot, FromStatusSummary, FromHistoryEntry, FromProfiles, FromReply.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums are exposed as lowercase
// strings. Timestamps use RFC3339 with milliseconds and durations are
// reported in milliseconds.
package api
