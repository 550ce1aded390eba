package api

import (
	"sort"
	"time"

	"easel/internal/config"
	"easel/internal/history"
	"easel/internal/intake"
	"easel/internal/queue"
	"easel/internal/workflow"
)

// FromQueueSummary converts a queued request view to its API representation.
func FromQueueSummary(summary queue.Summary) QueueItem {
	return QueueItem{
		ID:         summary.ID,
		Position:   summary.Position,
		Profile:    summary.Profile,
		Requester:  summary.Requester,
		Channel:    summary.Channel,
		Text:       summary.Text,
		Mode:       summary.Mode,
		Assets:     summary.Assets,
		EnqueuedAt: formatTime(summary.EnqueuedAt),
	}
}

// FromSnapshot converts a queue snapshot. Waiting is never nil.
func FromSnapshot(snap queue.Snapshot) QueueStatus {
	status := QueueStatus{
		Capacity: snap.Capacity,
		Busy:     snap.Busy,
		Waiting:  make([]QueueItem, 0, len(snap.Waiting)),
	}
	if snap.Active != nil {
		active := FromQueueSummary(*snap.Active)
		status.Active = &active
	}
	for _, summary := range snap.Waiting {
		status.Waiting = append(status.Waiting, FromQueueSummary(summary))
	}
	return status
}

// FromStatusSummary converts worker diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkerStatus {
	status := WorkerStatus{
		Running:   summary.Running,
		Busy:      summary.Busy,
		Stage:     string(summary.Stage),
		ActiveID:  summary.ActiveID,
		LastError: summary.LastError,
		Processed: summary.Processed,
		Failed:    summary.Failed,
	}
	if summary.Last != nil {
		last := JobResult{
			RequestID:  summary.Last.RequestID,
			Profile:    summary.Last.Profile,
			Status:     string(summary.Last.Status),
			ErrorKind:  summary.Last.ErrorKind,
			Error:      summary.Last.Error,
			Outputs:    summary.Last.Outputs,
			DurationMS: summary.Last.Duration.Milliseconds(),
			FinishedAt: formatTime(summary.Last.FinishedAt),
		}
		status.Last = &last
	}
	return status
}

// FromHistoryEntry converts a ledger row.
func FromHistoryEntry(entry history.Entry) HistoryEntry {
	dto := HistoryEntry{
		RequestID:     entry.RequestID,
		CorrelationID: entry.CorrelationID,
		PromptID:      entry.PromptID,
		Profile:       entry.Profile,
		Requester:     entry.Requester,
		Channel:       entry.Channel,
		Mode:          entry.Mode,
		OriginalText:  entry.OriginalText,
		FinalText:     entry.FinalText,
		Status:        string(entry.Status),
		ErrorKind:     entry.ErrorKind,
		ErrorMessage:  entry.ErrorMessage,
		OutputCount:   entry.OutputCount,
		FinishedAt:    formatTime(entry.FinishedAt),
		DurationMS:    entry.Duration().Milliseconds(),
	}
	if entry.EnqueuedAt != nil {
		dto.EnqueuedAt = formatTime(*entry.EnqueuedAt)
	}
	if entry.StartedAt != nil {
		dto.StartedAt = formatTime(*entry.StartedAt)
	}
	return dto
}

// FromHistoryEntries converts a slice of ledger rows, preserving order.
func FromHistoryEntries(entries []history.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromHistoryEntry(entry))
	}
	return out
}

// FromHistoryStats converts per-status counts into a string-keyed map.
func FromHistoryStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FromProfiles lists the configured profiles, marking the one requests
// without an alias resolve to.
func FromProfiles(cfg *config.Config) []Profile {
	if cfg == nil {
		return nil
	}
	defaultAlias := ""
	if profile, ok := cfg.DefaultProfile(); ok {
		defaultAlias = profile.Alias
	}
	out := make([]Profile, 0, len(cfg.Workflows))
	for _, profile := range cfg.Workflows {
		out = append(out, Profile{
			Alias:           profile.Alias,
			Default:         profile.Alias == defaultAlias,
			PermissionLevel: profile.PermissionLevel,
			FilePath:        cfg.TemplatePath(profile),
			AssetSlots:      append([]string(nil), profile.LoadImageNodeIDs...),
			PromptNode:      profile.PositivePromptNodeID,
			OutputNode:      profile.OutputNodeID,
		})
	}
	return out
}

// FromReply converts an intake reply.
func FromReply(reply intake.Reply) InteractionResponse {
	return InteractionResponse{
		Handled:   reply.Handled(),
		Outcome:   string(reply.Outcome),
		Message:   reply.Message,
		Position:  reply.Position,
		RequestID: reply.RequestID,
		Profile:   reply.Profile,
	}
}

// SortedStatuses returns the keys of a history stats map in a stable order.
func SortedStatuses(stats map[string]int) []string {
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
