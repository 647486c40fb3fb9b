// Package settings persists the per-user application settings file that records
// where the memoir data directory lives and the outcome of the last migration.
package settings
