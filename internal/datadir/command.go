package datadir

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/utils/flags"
)

const (
	infoCommandUseConstant                = "data-info"
	infoCommandShortDescriptionConstant   = "Summarize the contents of a memoir data directory"
	validateCommandUseConstant            = "data-validate PATH"
	validateCommandShortConstant          = "Check whether a path can become the data directory"
	directoryFlagNameConstant             = "dir"
	directoryFlagUsageConstant            = "Data directory to inspect (defaults to the configured data directory)"
	formatFlagNameConstant                = "format"
	formatFlagUsageConstant               = "Output format"
	createFlagNameConstant                = "create"
	createFlagUsageConstant               = "Create the directory when it does not exist"
	outputFormatTextConstant              = "text"
	outputFormatJSONConstant              = "json"
	validateArgumentCountConstant         = 1
	directoryUnavailableMessageConstant   = "no directory given and no data directory configured"
	pathRejectedMessageConstant           = "path rejected"
	inspectErrorTemplateConstant          = "unable to inspect data directory: %w"
	directoryResolveErrorTemplateConstant = "unable to determine the data directory: %w"
	outputErrorTemplateConstant           = "unable to write output: %w"
	rejectedPathErrorTemplateConstant     = "%w: %s"
	jsonIndentationConstant               = "  "
	summaryDirectoryTemplateConstant      = "Data directory: %s\n"
	summaryFilesTemplateConstant          = "Files: %s (%s)\n"
	summaryTitleTemplateConstant          = "Title: %s\n"
	summaryAuthorTemplateConstant         = "Author: %s\n"
	summaryManifestMissingConstant        = "Manifest: not found\n"
	summaryManifestErrorTemplateConstant  = "Manifest: %s\n"
	summaryChaptersTemplateConstant       = "Chapters: %d\n"
	summaryChapterTemplateConstant        = "  %s %s (%s words)\n"
	summaryMissingChapterTemplateConstant = "  %s %s (missing)\n"
	summaryImagesTemplateConstant         = "Images: %d\n"
	summaryDeletedTemplateConstant        = "Deleted chapters: %d\n"
	validationValidTemplateConstant       = "OK: %s (%s)\n"
	validationInvalidTemplateConstant     = "Rejected: %s\n"
	logMessageDirectoryInspectedConstant  = "Inspected data directory"
	logFieldRootConstant                  = "root"
	logFieldFileCountConstant             = "file_count"
)

// ErrPathRejected indicates that data-validate found the candidate path unusable.
var ErrPathRejected = errors.New(pathRejectedMessageConstant)

// DataDirectoryProvider reports the configured data directory.
type DataDirectoryProvider func() (string, error)

// CommandBuilder assembles the data-info and data-validate commands.
type CommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	DataDirectoryProvider DataDirectoryProvider
	FileSystem            afero.Fs
}

// Build constructs the data directory inspection commands.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	infoCommand, infoBuildError := builder.BuildInfoCommand()
	if infoBuildError != nil {
		return nil, infoBuildError
	}
	validateCommand, validateBuildError := builder.BuildValidateCommand()
	if validateBuildError != nil {
		return nil, validateBuildError
	}
	return []*cobra.Command{infoCommand, validateCommand}, nil
}

// BuildInfoCommand constructs the data-info command.
func (builder *CommandBuilder) BuildInfoCommand() (*cobra.Command, error) {
	var directory string
	var outputFormat string

	command := &cobra.Command{
		Use:           infoCommandUseConstant,
		Short:         infoCommandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runInfo(command, directory, outputFormat)
		},
	}

	command.Flags().StringVar(&directory, directoryFlagNameConstant, "", directoryFlagUsageConstant)
	flags.AddChoiceFlag(command.Flags(), &outputFormat, formatFlagNameConstant, outputFormatTextConstant, []string{outputFormatTextConstant, outputFormatJSONConstant}, formatFlagUsageConstant)

	return command, nil
}

// BuildValidateCommand constructs the data-validate command.
func (builder *CommandBuilder) BuildValidateCommand() (*cobra.Command, error) {
	var createMissing bool

	command := &cobra.Command{
		Use:           validateCommandUseConstant,
		Short:         validateCommandShortConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(validateArgumentCountConstant),
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runValidate(command, arguments[0], createMissing)
		},
	}

	flags.AddToggleFlag(command.Flags(), &createMissing, createFlagNameConstant, false, createFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) runInfo(command *cobra.Command, directory string, outputFormat string) error {
	root := strings.TrimSpace(directory)
	if len(root) == 0 {
		configuredDirectory, configuredError := builder.configuredDirectory()
		if configuredError != nil {
			return configuredError
		}
		root = configuredDirectory
	}

	summary, inspectError := NewInspector(builder.FileSystem).Inspect(root)
	if inspectError != nil {
		return fmt.Errorf(inspectErrorTemplateConstant, inspectError)
	}
	builder.resolveLogger().Debug(
		logMessageDirectoryInspectedConstant,
		zap.String(logFieldRootConstant, summary.Root),
		zap.Int(logFieldFileCountConstant, summary.FileCount),
	)

	var writeError error
	if outputFormat == outputFormatJSONConstant {
		encoder := json.NewEncoder(command.OutOrStdout())
		encoder.SetIndent("", jsonIndentationConstant)
		writeError = encoder.Encode(summary)
	} else {
		writeError = writeSummary(command.OutOrStdout(), summary)
	}
	if writeError != nil {
		return fmt.Errorf(outputErrorTemplateConstant, writeError)
	}
	return nil
}

func (builder *CommandBuilder) runValidate(command *cobra.Command, candidate string, createMissing bool) error {
	currentDirectory := ""
	if builder.DataDirectoryProvider != nil {
		if configuredDirectory, configuredError := builder.DataDirectoryProvider(); configuredError == nil {
			currentDirectory = configuredDirectory
		}
	}

	result := NewPathValidator(builder.FileSystem, nil).Validate(candidate, ValidationOptions{
		CurrentDataDirectory: currentDirectory,
		CreateMissing:        createMissing,
	})

	if !result.Valid {
		if _, writeError := fmt.Fprintf(command.OutOrStdout(), validationInvalidTemplateConstant, result.Message); writeError != nil {
			return fmt.Errorf(outputErrorTemplateConstant, writeError)
		}
		return fmt.Errorf(rejectedPathErrorTemplateConstant, ErrPathRejected, result.Message)
	}

	if _, writeError := fmt.Fprintf(command.OutOrStdout(), validationValidTemplateConstant, result.ResolvedPath, result.Message); writeError != nil {
		return fmt.Errorf(outputErrorTemplateConstant, writeError)
	}
	return nil
}

func (builder *CommandBuilder) configuredDirectory() (string, error) {
	if builder.DataDirectoryProvider == nil {
		return "", errors.New(directoryUnavailableMessageConstant)
	}
	configuredDirectory, configuredError := builder.DataDirectoryProvider()
	if configuredError != nil {
		return "", fmt.Errorf(directoryResolveErrorTemplateConstant, configuredError)
	}
	if len(strings.TrimSpace(configuredDirectory)) == 0 {
		return "", errors.New(directoryUnavailableMessageConstant)
	}
	return configuredDirectory, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider != nil {
		if logger := builder.LoggerProvider(); logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

func writeSummary(writer io.Writer, summary Summary) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, summaryDirectoryTemplateConstant, summary.Root)
	fmt.Fprintf(&builder, summaryFilesTemplateConstant, humanize.Comma(int64(summary.FileCount)), humanize.IBytes(uint64(max(summary.TotalBytes, 0))))

	switch {
	case !summary.HasManifest:
		builder.WriteString(summaryManifestMissingConstant)
	case len(summary.ManifestError) > 0:
		fmt.Fprintf(&builder, summaryManifestErrorTemplateConstant, summary.ManifestError)
	default:
		fmt.Fprintf(&builder, summaryTitleTemplateConstant, summary.Title)
		fmt.Fprintf(&builder, summaryAuthorTemplateConstant, summary.Author)
		fmt.Fprintf(&builder, summaryChaptersTemplateConstant, len(summary.Chapters))
		for _, chapter := range summary.Chapters {
			if chapter.Missing {
				fmt.Fprintf(&builder, summaryMissingChapterTemplateConstant, chapter.ID, chapter.File)
				continue
			}
			fmt.Fprintf(&builder, summaryChapterTemplateConstant, chapter.ID, chapter.Title, humanize.Comma(int64(chapter.WordCount)))
		}
	}

	fmt.Fprintf(&builder, summaryImagesTemplateConstant, summary.ImageCount)
	fmt.Fprintf(&builder, summaryDeletedTemplateConstant, summary.DeletedChapterCount)

	_, writeError := io.WriteString(writer, builder.String())
	return writeError
}
