// Package logging assembles structured slog loggers and formatting helpers used
// across retro components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so workflow code can automatically tag
// log lines with attempt IDs, triggers, and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
