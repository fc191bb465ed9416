// Package telemetry builds the process logger and reports server faults to
// Sentry. Library packages never import it; only cmd and internal/httpapi do.
package telemetry
