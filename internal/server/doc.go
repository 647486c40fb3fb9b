// Package server exposes the data directory operations over HTTP.
//
// The gin engine serves the settings endpoints used by the memoir editor: the current data
// directory, path validation, migration estimates, the migration itself with progress
// polling, and Prometheus metrics. Migrations run one at a time.
package server
