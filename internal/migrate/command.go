package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/settings"
	"github.com/temirov/memdoc/internal/ui"
	"github.com/temirov/memdoc/internal/utils/flags"
	pathutils "github.com/temirov/memdoc/internal/utils/path"
)

const (
	migrateCommandUseConstant                = "data-migrate"
	migrateCommandShortDescriptionConstant   = "Move the memoir data directory to a new location"
	migrateCommandLongDescriptionConstant    = "data-migrate copies the data directory to the destination, verifies the copy, and then keeps the original as a timestamped backup or deletes it."
	verifyCommandUseConstant                 = "data-verify SOURCE DESTINATION"
	verifyCommandShortDescriptionConstant    = "Check that a destination directory is a faithful copy of a source"
	estimateCommandUseConstant               = "data-estimate"
	estimateCommandShortDescriptionConstant  = "Preview the size and duration of a data directory migration"
	destinationFlagNameConstant              = "to"
	destinationFlagUsageConstant             = "Destination directory for the data"
	sourceFlagNameConstant                   = "from"
	sourceFlagUsageConstant                  = "Source data directory (defaults to the configured data directory)"
	keepBackupFlagNameConstant               = "keep-backup"
	keepBackupFlagUsageConstant              = "Keep the original directory as a timestamped backup instead of deleting it"
	verificationFlagNameConstant             = "verification"
	verificationFlagUsageConstant            = "How thoroughly the copy is checked"
	sampleSizeFlagNameConstant               = "sample-size"
	sampleSizeFlagUsageConstant              = "Number of files checksummed in sample verification"
	assumeYesFlagNameConstant                = "yes"
	assumeYesFlagUsageConstant               = "Delete the original directory without asking for confirmation"
	verifyArgumentCountConstant              = 2
	destinationRequiredMessageConstant       = "a destination directory is required"
	sourceRequiredMessageConstant            = "no source directory given and no data directory configured"
	verificationErrorTemplateConstant        = "%w: %s"
	sampleSizeInvalidMessageConstant         = "must be positive"
	invalidInputErrorTemplateConstant        = "invalid %s: %s"
	migrationCancelledMessageConstant        = "migration cancelled"
	verificationFailedErrorMessageConstant   = "verification failed"
	verificationPassedTemplateConstant       = "Verification passed: %d of %d files checked"
	verificationFailedOutputTemplateConstant = "Verification failed (%s): %s"
	sourceResolutionErrorTemplateConstant    = "unable to determine the source directory: %w"
	migrationErrorTemplateConstant           = "data directory migration failed: %w"
	estimateErrorTemplateConstant            = "migration estimate failed: %w"
	promptErrorTemplateConstant              = "unable to read confirmation: %w"
	settingsUpdateErrorTemplateConstant      = "migration completed but the settings were not updated: %w"
	outputErrorTemplateConstant              = "unable to write output: %w"
	logMessageMigrationDeclinedConstant      = "Data directory migration declined"
	logMessageSettingsUpdateSkippedConstant  = "Migrated directory is not the configured data directory, settings unchanged"
	logFieldSourceDirectoryConstant          = "source"
	defaultProgressWidthConstant             = 0
)

var (
	// ErrMigrationCancelled indicates the user declined the deletion of the source directory.
	ErrMigrationCancelled = errors.New(migrationCancelledMessageConstant)
	// ErrVerificationFailed indicates that data-verify found a mismatch.
	ErrVerificationFailed = errors.New(verificationFailedErrorMessageConstant)
)

// InvalidInputError surfaces validation issues for command inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// MigratorProvider constructs a Migrator for a command invocation.
type MigratorProvider func(logger *zap.Logger) *Migrator

// SettingsStoreProvider supplies the settings store holding the configured data directory.
type SettingsStoreProvider func() *settings.Store

// CommandBuilder assembles the data-migrate, data-verify, and data-estimate commands.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	SettingsStoreProvider SettingsStoreProvider
	MigratorProvider      MigratorProvider
	PathResolver          *pathutils.PathResolver
}

type migrateFlagValues struct {
	destination      string
	source           string
	keepBackup       bool
	verificationMode string
	sampleSize       int
	assumeYes        bool
}

type migrateCommandOptions struct {
	destination      string
	source           string
	sourceConfigured bool
	keepBackup       bool
	verificationMode VerificationMode
	sampleSize       int
	assumeYes        bool
}

// Build constructs every data directory command.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	migrateCommand, migrateBuildError := builder.BuildMigrateCommand()
	if migrateBuildError != nil {
		return nil, migrateBuildError
	}
	verifyCommand, verifyBuildError := builder.BuildVerifyCommand()
	if verifyBuildError != nil {
		return nil, verifyBuildError
	}
	estimateCommand, estimateBuildError := builder.BuildEstimateCommand()
	if estimateBuildError != nil {
		return nil, estimateBuildError
	}
	return []*cobra.Command{migrateCommand, verifyCommand, estimateCommand}, nil
}

// BuildMigrateCommand constructs the data-migrate command.
func (builder *CommandBuilder) BuildMigrateCommand() (*cobra.Command, error) {
	defaults := DefaultCommandConfiguration()
	flagValues := &migrateFlagValues{}

	command := &cobra.Command{
		Use:           migrateCommandUseConstant,
		Short:         migrateCommandShortDescriptionConstant,
		Long:          migrateCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runMigrate(command, flagValues)
		},
	}

	command.Flags().StringVar(&flagValues.destination, destinationFlagNameConstant, "", destinationFlagUsageConstant)
	command.Flags().StringVar(&flagValues.source, sourceFlagNameConstant, "", sourceFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &flagValues.keepBackup, keepBackupFlagNameConstant, defaults.KeepBackup, keepBackupFlagUsageConstant)
	flags.AddChoiceFlag(command.Flags(), &flagValues.verificationMode, verificationFlagNameConstant, defaults.VerificationMode, VerificationModes(), verificationFlagUsageConstant)
	command.Flags().IntVar(&flagValues.sampleSize, sampleSizeFlagNameConstant, defaults.SampleSize, sampleSizeFlagUsageConstant)
	command.Flags().BoolVar(&flagValues.assumeYes, assumeYesFlagNameConstant, false, assumeYesFlagUsageConstant)

	return command, nil
}

// BuildVerifyCommand constructs the data-verify command.
func (builder *CommandBuilder) BuildVerifyCommand() (*cobra.Command, error) {
	defaults := DefaultCommandConfiguration()
	flagValues := &migrateFlagValues{}

	command := &cobra.Command{
		Use:           verifyCommandUseConstant,
		Short:         verifyCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(verifyArgumentCountConstant),
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runVerify(command, arguments, flagValues)
		},
	}

	flags.AddChoiceFlag(command.Flags(), &flagValues.verificationMode, verificationFlagNameConstant, defaults.VerificationMode, VerificationModes(), verificationFlagUsageConstant)
	command.Flags().IntVar(&flagValues.sampleSize, sampleSizeFlagNameConstant, defaults.SampleSize, sampleSizeFlagUsageConstant)

	return command, nil
}

// BuildEstimateCommand constructs the data-estimate command.
func (builder *CommandBuilder) BuildEstimateCommand() (*cobra.Command, error) {
	flagValues := &migrateFlagValues{}

	command := &cobra.Command{
		Use:           estimateCommandUseConstant,
		Short:         estimateCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runEstimate(command, flagValues)
		},
	}

	command.Flags().StringVar(&flagValues.destination, destinationFlagNameConstant, "", destinationFlagUsageConstant)
	command.Flags().StringVar(&flagValues.source, sourceFlagNameConstant, "", sourceFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runMigrate(command *cobra.Command, flagValues *migrateFlagValues) error {
	options, optionsError := builder.parseMigrateOptions(command, flagValues)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()
	migrator := builder.resolveMigrator(logger)
	formatter := ui.MigrationEventFormatter{}

	estimate, estimateError := migrator.Estimate(options.source, options.destination)
	if estimateError != nil {
		return fmt.Errorf(migrationErrorTemplateConstant, estimateError)
	}

	if !options.keepBackup && !options.assumeYes {
		prompter := ui.NewIOConfirmationPrompter(command.InOrStdin(), command.ErrOrStderr())
		confirmed, promptError := prompter.Confirm(formatter.BuildDeletionPrompt(options.source))
		if promptError != nil {
			return fmt.Errorf(promptErrorTemplateConstant, promptError)
		}
		if !confirmed {
			logger.Info(logMessageMigrationDeclinedConstant, zap.String(logFieldSourceDirectoryConstant, options.source))
			return ErrMigrationCancelled
		}
	}

	if writeError := ui.WriteLines(command.ErrOrStderr(), formatter.BuildStartedMessage(ui.MigrationPlan{
		Source:            options.source,
		Destination:       options.destination,
		TotalBytes:        estimate.TotalBytes,
		FileCount:         estimate.FileCount,
		EstimatedDuration: estimate.Duration,
	})); writeError != nil {
		return fmt.Errorf(outputErrorTemplateConstant, writeError)
	}

	progressRenderer := ui.NewProgressRenderer(command.ErrOrStderr(), defaultProgressWidthConstant)
	result, migrationError := migrator.Migrate(MigrationOptions{
		Source:           options.source,
		Destination:      options.destination,
		KeepBackup:       options.keepBackup,
		Progress:         progressRenderer.Update,
		VerificationMode: options.verificationMode,
		SampleSize:       options.sampleSize,
	})
	progressRenderer.Finish()
	if migrationError != nil {
		return fmt.Errorf(migrationErrorTemplateConstant, migrationError)
	}

	if writeError := ui.WriteLines(command.OutOrStdout(), formatter.BuildCompletedMessages(summarize(result))...); writeError != nil {
		return fmt.Errorf(outputErrorTemplateConstant, writeError)
	}

	return builder.recordMigration(logger, options, result)
}

func (builder *CommandBuilder) runVerify(command *cobra.Command, arguments []string, flagValues *migrateFlagValues) error {
	configuration := builder.resolveConfiguration()
	verificationMode, sampleSize, parseError := resolveVerificationSettings(command, configuration, flagValues)
	if parseError != nil {
		return parseError
	}

	logger := builder.resolveLogger()
	result := builder.resolveMigrator(logger).Verifier().Verify(
		strings.TrimSpace(arguments[0]),
		strings.TrimSpace(arguments[1]),
		VerificationOptions{Mode: verificationMode, SampleSize: sampleSize},
	)

	if !result.Valid {
		if writeError := ui.WriteLines(command.OutOrStdout(), fmt.Sprintf(verificationFailedOutputTemplateConstant, result.Reason, result.Message)); writeError != nil {
			return fmt.Errorf(outputErrorTemplateConstant, writeError)
		}
		return fmt.Errorf(verificationErrorTemplateConstant, ErrVerificationFailed, result.Message)
	}

	if writeError := ui.WriteLines(command.OutOrStdout(), fmt.Sprintf(verificationPassedTemplateConstant, result.CheckedFiles, result.SourceFileCount)); writeError != nil {
		return fmt.Errorf(outputErrorTemplateConstant, writeError)
	}
	return nil
}

func (builder *CommandBuilder) runEstimate(command *cobra.Command, flagValues *migrateFlagValues) error {
	destination := strings.TrimSpace(flagValues.destination)
	if len(destination) == 0 {
		return InvalidInputError{FieldName: destinationFlagNameConstant, Message: destinationRequiredMessageConstant}
	}
	source, _, sourceError := builder.resolveSource(flagValues.source)
	if sourceError != nil {
		return sourceError
	}

	logger := builder.resolveLogger()
	estimate, estimateError := builder.resolveMigrator(logger).Estimate(source, destination)
	if estimateError != nil {
		return fmt.Errorf(estimateErrorTemplateConstant, estimateError)
	}

	message := ui.MigrationEventFormatter{}.BuildEstimateMessage(estimate.TotalBytes, estimate.FileCount, estimate.Duration, estimate.SameVolume)
	if writeError := ui.WriteLines(command.OutOrStdout(), message); writeError != nil {
		return fmt.Errorf(outputErrorTemplateConstant, writeError)
	}
	return nil
}

func (builder *CommandBuilder) parseMigrateOptions(command *cobra.Command, flagValues *migrateFlagValues) (migrateCommandOptions, error) {
	configuration := builder.resolveConfiguration()

	destination := strings.TrimSpace(flagValues.destination)
	if len(destination) == 0 {
		return migrateCommandOptions{}, InvalidInputError{FieldName: destinationFlagNameConstant, Message: destinationRequiredMessageConstant}
	}

	source, sourceConfigured, sourceError := builder.resolveSource(flagValues.source)
	if sourceError != nil {
		return migrateCommandOptions{}, sourceError
	}

	keepBackup := configuration.KeepBackup
	if command.Flags().Changed(keepBackupFlagNameConstant) {
		keepBackup = flagValues.keepBackup
	}

	verificationMode, sampleSize, verificationError := resolveVerificationSettings(command, configuration, flagValues)
	if verificationError != nil {
		return migrateCommandOptions{}, verificationError
	}

	return migrateCommandOptions{
		destination:      destination,
		source:           source,
		sourceConfigured: sourceConfigured,
		keepBackup:       keepBackup,
		verificationMode: verificationMode,
		sampleSize:       sampleSize,
		assumeYes:        flagValues.assumeYes,
	}, nil
}

func resolveVerificationSettings(command *cobra.Command, configuration CommandConfiguration, flagValues *migrateFlagValues) (VerificationMode, int, error) {
	verificationValue := configuration.VerificationMode
	if command.Flags().Changed(verificationFlagNameConstant) {
		verificationValue = flagValues.verificationMode
	}
	verificationMode, parseError := ParseVerificationMode(verificationValue)
	if parseError != nil {
		return "", 0, InvalidInputError{FieldName: verificationFlagNameConstant, Message: parseError.Error()}
	}

	sampleSize := configuration.SampleSize
	if command.Flags().Changed(sampleSizeFlagNameConstant) {
		if flagValues.sampleSize <= 0 {
			return "", 0, InvalidInputError{FieldName: sampleSizeFlagNameConstant, Message: sampleSizeInvalidMessageConstant}
		}
		sampleSize = flagValues.sampleSize
	}
	return verificationMode, sampleSize, nil
}

// resolveSource returns the source directory and whether it is the configured data directory.
func (builder *CommandBuilder) resolveSource(flagSource string) (string, bool, error) {
	trimmedSource := strings.TrimSpace(flagSource)
	store := builder.resolveSettingsStore()

	configuredDirectory := ""
	if store != nil {
		dataDirectory, dataDirectoryError := store.DataDirectory()
		if dataDirectoryError != nil {
			if len(trimmedSource) == 0 {
				return "", false, fmt.Errorf(sourceResolutionErrorTemplateConstant, dataDirectoryError)
			}
		} else {
			configuredDirectory = dataDirectory
		}
	}

	if len(trimmedSource) == 0 {
		if len(configuredDirectory) == 0 {
			return "", false, InvalidInputError{FieldName: sourceFlagNameConstant, Message: sourceRequiredMessageConstant}
		}
		return configuredDirectory, true, nil
	}
	if len(configuredDirectory) == 0 {
		return trimmedSource, false, nil
	}

	resolver := builder.resolvePathResolver()
	resolvedSource, sourceError := resolver.Resolve(trimmedSource)
	resolvedConfigured, configuredError := resolver.Resolve(configuredDirectory)
	sourceConfigured := sourceError == nil && configuredError == nil && resolvedSource == resolvedConfigured
	return trimmedSource, sourceConfigured, nil
}

func (builder *CommandBuilder) recordMigration(logger *zap.Logger, options migrateCommandOptions, result MigrationResult) error {
	store := builder.resolveSettingsStore()
	if store == nil {
		return nil
	}
	if !options.sourceConfigured {
		logger.Info(
			logMessageSettingsUpdateSkippedConstant,
			zap.String(logFieldSourceDirectoryConstant, result.Source),
		)
		return nil
	}

	warnings := make([]string, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		warnings = append(warnings, warning.String())
	}
	_, recordError := store.RecordMigration(settings.MigrationRecord{
		ID:             result.ID,
		Source:         result.Source,
		Destination:    result.Destination,
		BackupLocation: result.BackupLocation,
		FilesCopied:    result.Statistics.FilesCopied,
		BytesCopied:    result.Statistics.BytesCopied,
		Warnings:       warnings,
		CompletedAt:    result.CompletedAt,
	})
	if recordError != nil {
		return fmt.Errorf(settingsUpdateErrorTemplateConstant, recordError)
	}
	return nil
}

func summarize(result MigrationResult) ui.MigrationSummary {
	summary := ui.MigrationSummary{
		Destination:    result.Destination,
		BackupLocation: result.BackupLocation,
		FilesCopied:    result.Statistics.FilesCopied,
		BytesCopied:    result.Statistics.BytesCopied,
		Elapsed:        result.Duration(),
	}
	sourceRetained := len(result.BackupLocation) > 0
	for _, warning := range result.Warnings {
		summary.Warnings = append(summary.Warnings, warning.String())
		if warning.Kind == WarningSourceRemovalFailed || warning.Kind == WarningBackupFailed {
			sourceRetained = true
		}
	}
	if !sourceRetained {
		summary.SourceRemoved = result.Source
	}
	return summary
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveMigrator(logger *zap.Logger) *Migrator {
	if builder.MigratorProvider != nil {
		if migrator := builder.MigratorProvider(logger); migrator != nil {
			return migrator
		}
	}
	return NewMigrator(MigratorDependencies{Logger: logger, PathResolver: builder.PathResolver})
}

func (builder *CommandBuilder) resolveSettingsStore() *settings.Store {
	if builder.SettingsStoreProvider == nil {
		return nil
	}
	return builder.SettingsStoreProvider()
}

func (builder *CommandBuilder) resolvePathResolver() *pathutils.PathResolver {
	if builder.PathResolver != nil {
		return builder.PathResolver
	}
	return pathutils.NewPathResolver()
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}
