// Package daemon coordinates the long-running easel process.
//
// It ties the command intake, the request assembler, the worker, and the
// history ledger into a single lifecycle with flock-based locking to prevent
// multiple instances. The HTTP API (chi) accepts chat-bridge interactions on
// POST /api/interactions and exposes status, queue, history, and profile
// views plus the Prometheus endpoint.
//
// Keep orchestration logic here: job execution lives in workflow, routing in
// intake, while the daemon focuses on startup, shutdown, and serving.
package daemon
