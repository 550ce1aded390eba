// Package history records finished jobs in a small SQLite ledger.
//
// The ledger is write-once per request: the worker appends an Entry when a
// request reaches a terminal status, and the API and CLI read it back. Queue
// contents are never stored here; a restart starts with an empty queue.
package history
