// Package logging provides structured logging for NetDash Core.
//
// It wraps log/slog with service-wide default attributes (service name,
// version) and config-driven level, format, and destination selection.
// Components receive a child logger via With("component", name) so every
// line is attributable.
package logging
