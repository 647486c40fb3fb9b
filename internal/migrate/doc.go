// Package migrate relocates a memoir data directory: it validates the move,
// copies the tree, verifies the copy, and then backs up or removes the source.
// It also provides the standalone integrity verifier and the duration estimator
// used to preview a migration.
package migrate
