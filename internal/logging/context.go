package logging

import (
	"context"
	"log/slog"

	"easel/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID is the standardized key for the per-submission correlation identifier.
	FieldCorrelationID = "correlation_id"
	// FieldPromptID is the standardized key for the backend-assigned job identifier.
	FieldPromptID = "prompt_id"
	// FieldRequestID is the standardized key for queued request identifiers.
	FieldRequestID = "request_id"
	// FieldProfile is the standardized key for workflow profile aliases.
	FieldProfile = "profile"
	// FieldRequester is the standardized key for the requesting user.
	FieldRequester = "requester"
	// FieldChannel is the standardized key for the conversation channel.
	FieldChannel = "channel"
	// FieldStage is the standardized key for job lifecycle stage names.
	FieldStage = "stage"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldJobStatus is the terminal status of a job.
	FieldJobStatus = "status"
	// FieldErrorKind is the stable failure classification (services.Kind).
	FieldErrorKind = "error_kind"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 6)
	if id, ok := services.CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, id))
	}
	if id, ok := services.PromptIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPromptID, id))
	}
	if alias, ok := services.ProfileFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProfile, alias))
	}
	requester, channel := services.RequesterFromContext(ctx)
	if requester != "" {
		fields = append(fields, slog.String(FieldRequester, requester))
	}
	if channel != "" {
		fields = append(fields, slog.String(FieldChannel, channel))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
