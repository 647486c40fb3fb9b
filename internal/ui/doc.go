// Package ui provides helpers for human-readable console output.
//
// The helpers turn migration events into concise messages, render copy progress,
// and ask for confirmation, while detailed telemetry continues to flow through
// structured loggers.
package ui
