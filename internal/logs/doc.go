// Package logs reads the daemon log file for the CLI.
//
// Last returns the trailing lines of a file with bounded memory, and Follow
// polls from an offset and emits new lines until its context ends. Follow
// restarts from the beginning when the file shrinks, which covers truncation
// and rotation by copy.
package logs
