// Package workflow runs assembled requests against the job backend, one at a
// time.
//
// Manager.Trigger claims the head of the queue when the worker is idle and runs
// it on a goroutine: load the template, download and upload each asset into
// its slot, rewrite the prompt text, reroll sampler seeds, submit, and wait for
// the output node's images on the event stream. Every request ends Completed,
// Failed, or TimedOut; the requester hears about it, the outcome is recorded
// in history, and the busy flag is released even after a panic. Finishing a
// request triggers the next one.
package workflow
