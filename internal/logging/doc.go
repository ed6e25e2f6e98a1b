// Package logging assembles structured slog loggers and formatting helpers used
// across mediaflow services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so executor and scheduler code
// can automatically tag log lines with execution ids, stages, operators, and
// correlation ids. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
package logging
