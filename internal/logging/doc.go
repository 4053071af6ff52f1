// Package logging assembles structured slog loggers used across the packaging
// pipeline.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so stage code tags every line with the
// reference id, run id, and pipeline state. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
