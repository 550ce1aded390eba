// Package daemonrun builds and runs the easel daemon process: it sets up the
// log file, logs a dependency snapshot and preflight results, wires every
// component through Build, and blocks until a shutdown signal arrives.
package daemonrun
