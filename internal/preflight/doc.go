// Package preflight provides readiness checks for the external services and
// filesystem paths easel depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure without
//     refusing to start, since the backend may come up later.
//   - The CLI "easel preflight" command prints the results and exits non-zero
//     when any check fails.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
