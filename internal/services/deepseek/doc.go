// Package deepseek provides the DeepSeek chat client used by the prompt
// pipeline.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Translate: literal English translation of request text.
// Client.Engineer: rewrite request text into a structured editing instruction.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 3
// attempts by default). Context cancellation aborts retries immediately.
//
// # Fallback
//
// Callers keep the original text when the client returns an error.
package deepseek
