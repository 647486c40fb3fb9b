// Package datadir describes the memoir data directory layout and provides the
// read-mostly helpers built on it: tree measurement, content inspection, and
// validation of candidate locations for the data directory.
package datadir
