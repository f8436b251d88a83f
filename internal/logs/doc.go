// Package logs reads the retro log file for the CLI "logs" command.
//
// Last returns the trailing lines with bounded memory; Follow then polls
// from the returned offset and restarts from the top when the file is
// truncated or replaced.
package logs
