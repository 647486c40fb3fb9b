// Package cli builds the memdoc command-line interface: the Cobra command tree,
// layered configuration (embedded defaults, config file, MEMDOC_* environment),
// and the zap logger shared by the data directory commands.
package cli
