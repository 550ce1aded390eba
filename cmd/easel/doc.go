// Package main hosts the easel operator CLI.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API (status, queue, history, profiles,
// test-notify). Preflight checks, log tailing, and configuration scaffolding
// run locally, and `easel daemon` runs the daemon in the foreground.
// Configuration resolution and API discovery live in commandContext so
// subcommands focus on rendering.
package main
