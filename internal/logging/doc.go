// Package logging configures structured slog output for wordgrid.
// Logs are JSON lines written to a size-rotated file under ~/.wordgrid/logs/,
// optionally mirrored to stderr when --debug is set.
package logging
