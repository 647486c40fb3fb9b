package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	migrationStartedTemplateConstant   = "Migrating %s to %s (%s in %s files, about %s)"
	migrationCompletedTemplateConstant = "Migrated %s files (%s) to %s in %s"
	backupLocationTemplateConstant     = "Previous data kept at %s"
	sourceRemovedTemplateConstant      = "Removed %s"
	migrationWarningTemplateConstant   = "Warning: %s"
	migrationFailedTemplateConstant    = "Migration failed: %s"
	estimateTemplateConstant           = "%s in %s files, estimated %s (%s)"
	sameVolumeLabelConstant            = "same volume"
	crossVolumeLabelConstant           = "different volume"
	deletionPromptTemplateConstant     = "The original data directory %s will be deleted once the copy is verified. Continue? [y/N] "
	lineTerminatorConstant             = "\n"
	durationRoundingConstant           = 100 * time.Millisecond
	unknownFailureMessageConstant      = "unknown error"
)

// MigrationPlan describes a migration about to start.
type MigrationPlan struct {
	Source            string
	Destination       string
	TotalBytes        int64
	FileCount         int
	EstimatedDuration time.Duration
}

// MigrationSummary describes a completed migration.
type MigrationSummary struct {
	Destination    string
	SourceRemoved  string
	BackupLocation string
	FilesCopied    int
	BytesCopied    int64
	Elapsed        time.Duration
	Warnings       []string
}

// MigrationEventFormatter builds human-readable messages for migration lifecycle events.
type MigrationEventFormatter struct{}

// BuildStartedMessage formats the message printed before copying begins.
func (formatter MigrationEventFormatter) BuildStartedMessage(plan MigrationPlan) string {
	return fmt.Sprintf(
		migrationStartedTemplateConstant,
		plan.Source,
		plan.Destination,
		humanize.IBytes(uint64(max(plan.TotalBytes, 0))),
		humanize.Comma(int64(plan.FileCount)),
		formatDuration(plan.EstimatedDuration),
	)
}

// BuildCompletedMessages formats the lines printed after a successful migration.
func (formatter MigrationEventFormatter) BuildCompletedMessages(summary MigrationSummary) []string {
	messages := []string{fmt.Sprintf(
		migrationCompletedTemplateConstant,
		humanize.Comma(int64(summary.FilesCopied)),
		humanize.IBytes(uint64(max(summary.BytesCopied, 0))),
		summary.Destination,
		formatDuration(summary.Elapsed),
	)}
	switch {
	case len(summary.BackupLocation) > 0:
		messages = append(messages, fmt.Sprintf(backupLocationTemplateConstant, summary.BackupLocation))
	case len(summary.SourceRemoved) > 0:
		messages = append(messages, fmt.Sprintf(sourceRemovedTemplateConstant, summary.SourceRemoved))
	}
	for _, warning := range summary.Warnings {
		messages = append(messages, fmt.Sprintf(migrationWarningTemplateConstant, warning))
	}
	return messages
}

// BuildFailureMessage formats the message describing a failed migration.
func (formatter MigrationEventFormatter) BuildFailureMessage(failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(migrationFailedTemplateConstant, failureMessage)
}

// BuildEstimateMessage formats a migration preview.
func (formatter MigrationEventFormatter) BuildEstimateMessage(totalBytes int64, fileCount int, estimate time.Duration, sameVolume bool) string {
	volumeLabel := crossVolumeLabelConstant
	if sameVolume {
		volumeLabel = sameVolumeLabelConstant
	}
	return fmt.Sprintf(estimateTemplateConstant, humanize.IBytes(uint64(max(totalBytes, 0))), humanize.Comma(int64(fileCount)), formatDuration(estimate), volumeLabel)
}

// BuildDeletionPrompt formats the confirmation asked before the source is deleted.
func (formatter MigrationEventFormatter) BuildDeletionPrompt(source string) string {
	return fmt.Sprintf(deletionPromptTemplateConstant, source)
}

func formatDuration(duration time.Duration) string {
	if duration < durationRoundingConstant {
		return duration.String()
	}
	return duration.Round(durationRoundingConstant).String()
}

// WriteLines writes each message on its own line.
func WriteLines(writer io.Writer, messages ...string) error {
	if writer == nil || len(messages) == 0 {
		return nil
	}
	_, writeError := io.WriteString(writer, strings.Join(messages, lineTerminatorConstant)+lineTerminatorConstant)
	return writeError
}
