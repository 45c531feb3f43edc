// Package logging builds the slog loggers used across the daemon and CLI.
//
// Two output formats are supported: a compact console format for interactive
// use and JSON for log files and machine consumption. Helper constructors
// (String, Int, Error, ...) keep call sites terse, and field-name constants
// keep structured output consistent between components.
package logging
