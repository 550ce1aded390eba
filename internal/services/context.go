package services

import "context"

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	promptIDKey      contextKey = "prompt_id"
	profileKey       contextKey = "profile"
	requesterKey     contextKey = "requester"
	channelKey       contextKey = "channel"
	stageKey         contextKey = "stage"
	requestIDKey     contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCorrelationID annotates context with the per-submission correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return withString(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, correlationIDKey)
}

// WithPromptID annotates context with the backend-assigned job identifier.
func WithPromptID(ctx context.Context, id string) context.Context {
	return withString(ctx, promptIDKey, id)
}

// PromptIDFromContext returns the backend job identifier if present.
func PromptIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, promptIDKey)
}

// WithProfile annotates context with the workflow profile alias.
func WithProfile(ctx context.Context, alias string) context.Context {
	return withString(ctx, profileKey, alias)
}

// ProfileFromContext returns the workflow profile alias if present.
func ProfileFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, profileKey)
}

// WithRequester annotates context with the requester and channel identities.
func WithRequester(ctx context.Context, requester, channel string) context.Context {
	ctx = withString(ctx, requesterKey, requester)
	return withString(ctx, channelKey, channel)
}

// RequesterFromContext returns the requester and channel identities.
func RequesterFromContext(ctx context.Context) (requester, channel string) {
	requester, _ = stringFrom(ctx, requesterKey)
	channel, _ = stringFrom(ctx, channelKey)
	return requester, channel
}

// WithStage annotates context with the job lifecycle stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithRequestID annotates context with the queued request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
