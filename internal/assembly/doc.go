// Package assembly collects the assets of one request across several chat
// interactions.
//
// A command that arrives with fewer assets than its workflow profile needs
// starts a pending assembly keyed by requester and channel. Each later
// interaction from the same key that carries an image contributes its first
// image; once the required count is reached the assembly is removed and a
// queue.Request is returned for enqueueing. Extra images in one interaction
// are dropped.
//
// Pending assemblies never expire unless a TTL is configured.
package assembly
