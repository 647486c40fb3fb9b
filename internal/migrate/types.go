package migrate

import (
	"fmt"
	"strings"
	"time"
)

// VerificationMode selects how thoroughly a copy is checked.
type VerificationMode string

// Supported verification modes.
const (
	VerificationModeSample VerificationMode = "sample"
	VerificationModeFull   VerificationMode = "full"
)

const unsupportedVerificationModeTemplateConstant = "unsupported verification mode %q"

// DefaultSampleSize is the number of files checksummed in sample mode.
const DefaultSampleSize = 5

// VerificationModes lists the accepted verification mode names.
func VerificationModes() []string {
	return []string{string(VerificationModeSample), string(VerificationModeFull)}
}

// ParseVerificationMode normalizes a textual mode; blank input selects sample mode.
func ParseVerificationMode(candidate string) (VerificationMode, error) {
	switch VerificationMode(strings.ToLower(strings.TrimSpace(candidate))) {
	case "", VerificationModeSample:
		return VerificationModeSample, nil
	case VerificationModeFull:
		return VerificationModeFull, nil
	default:
		return "", fmt.Errorf(unsupportedVerificationModeTemplateConstant, candidate)
	}
}

// ProgressFunc receives cumulative copied bytes and the total to copy.
type ProgressFunc func(bytesCopied int64, totalBytes int64)

// MigrationOptions configures a single migration.
type MigrationOptions struct {
	Source      string
	Destination string
	// KeepBackup renames the source to a timestamped sibling instead of deleting it.
	KeepBackup       bool
	Progress         ProgressFunc
	VerificationMode VerificationMode
	// SampleSize overrides DefaultSampleSize in sample mode when positive.
	SampleSize int
}

// Statistics counts what the copy phase transferred.
type Statistics struct {
	FilesCopied int   `json:"files_copied"`
	BytesCopied int64 `json:"bytes_copied"`
}

// MigrationResult reports a migration outcome. It is populated on failure too, with
// the statistics reached before the failure.
type MigrationResult struct {
	ID             string     `json:"id"`
	Source         string     `json:"source"`
	Destination    string     `json:"destination"`
	Statistics     Statistics `json:"statistics"`
	BackupLocation string     `json:"backup_location,omitempty"`
	Warnings       []Warning  `json:"warnings"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    time.Time  `json:"completed_at"`
}

// Duration reports the wall time the migration took.
func (result MigrationResult) Duration() time.Duration {
	if result.CompletedAt.Before(result.StartedAt) {
		return 0
	}
	return result.CompletedAt.Sub(result.StartedAt)
}

// Estimate previews the cost of migrating a source directory.
type Estimate struct {
	TotalBytes int64         `json:"total_bytes"`
	FileCount  int           `json:"file_count"`
	SameVolume bool          `json:"same_volume"`
	Duration   time.Duration `json:"duration"`
}
