package migrate

import (
	"fmt"
	"strings"
)

// FailureKind classifies why a migration did not complete.
type FailureKind string

// Failure kinds reported by Migrator.Migrate.
const (
	FailureSourceNotFound           FailureKind = "source_not_found"
	FailureSourceNotDirectory       FailureKind = "source_not_directory"
	FailureSameSourceAndDestination FailureKind = "same_source_and_destination"
	FailureDestinationInsideSource  FailureKind = "destination_inside_source"
	FailureDestinationNotDirectory  FailureKind = "destination_not_directory"
	FailureDestinationNotEmpty      FailureKind = "destination_not_empty"
	FailureInsufficientDiskSpace    FailureKind = "insufficient_disk_space"
	FailureFilesystemUnavailable    FailureKind = "filesystem_unavailable"
	FailureCopyFailed               FailureKind = "copy_failed"
	FailureVerificationFailed       FailureKind = "verification_failed"
)

// IsValidation reports whether the failure was raised before anything was written.
func (kind FailureKind) IsValidation() bool {
	switch kind {
	case FailureCopyFailed, FailureVerificationFailed:
		return false
	default:
		return true
	}
}

// MigrationError is the only error type returned by Migrator.Migrate.
type MigrationError struct {
	Kind    FailureKind
	Message string
	// RelativePath names the offending file for copy and verification failures.
	RelativePath string
	// RequiredBytes and AvailableBytes are set for FailureInsufficientDiskSpace.
	RequiredBytes  uint64
	AvailableBytes uint64
	// VerificationReason carries the verifier's reason for FailureVerificationFailed.
	VerificationReason VerificationReason
	Cause              error
}

// Error describes the failure.
func (migrationError *MigrationError) Error() string {
	var builder strings.Builder
	builder.WriteString(string(migrationError.Kind))
	if len(migrationError.Message) > 0 {
		builder.WriteString(": ")
		builder.WriteString(migrationError.Message)
	}
	if migrationError.Cause != nil {
		builder.WriteString(fmt.Sprintf(" (%v)", migrationError.Cause))
	}
	return builder.String()
}

// Unwrap exposes the underlying cause.
func (migrationError *MigrationError) Unwrap() error {
	return migrationError.Cause
}

// Is matches another *MigrationError by kind so callers can use errors.Is with a kind template.
func (migrationError *MigrationError) Is(target error) bool {
	targetError, isMigrationError := target.(*MigrationError)
	if !isMigrationError {
		return false
	}
	return targetError.Kind == migrationError.Kind
}

func newMigrationError(kind FailureKind, message string, cause error) *MigrationError {
	return &MigrationError{Kind: kind, Message: message, Cause: cause}
}

// WarningKind classifies non-fatal problems after a successful copy.
type WarningKind string

// Warning kinds attached to successful migrations.
const (
	WarningBackupFailed        WarningKind = "backup_failed"
	WarningSourceRemovalFailed WarningKind = "source_removal_failed"
)

// Warning describes a post-copy problem that did not fail the migration.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// String renders the warning for logs and console output.
func (warning Warning) String() string {
	return fmt.Sprintf("%s: %s", warning.Kind, warning.Message)
}
