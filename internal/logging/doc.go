// Package logging assembles the structured slog loggers used across the
// organizer.
//
// It centralizes level and output plumbing, exposes typed attribute helpers,
// and derives per-run fields (run id, stage, client key) from context so
// pipeline code tags log lines consistently. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
