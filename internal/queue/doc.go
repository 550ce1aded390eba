// Package queue holds assembled requests waiting for the single worker.
//
// The queue is bounded (default capacity 3) and strictly first-in first-out.
// It also owns the worker's busy flag: TryClaim atomically marks the worker
// busy and pops the head, and Release clears it once the request reaches a
// terminal Status. Nothing is persisted; a restart drops waiting requests.
package queue
