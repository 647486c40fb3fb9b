package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/datadir"
	"github.com/temirov/memdoc/internal/migrate"
	"github.com/temirov/memdoc/internal/server"
	"github.com/temirov/memdoc/internal/settings"
	"github.com/temirov/memdoc/internal/utils"
	"github.com/temirov/memdoc/internal/utils/flags"
)

const (
	applicationNameConstant                 = "memdoc"
	applicationShortDescriptionConstant     = "Manage the memoir data directory"
	applicationLongDescriptionConstant      = "memdoc inspects, validates, and relocates the directory holding a memoir's manifest, chapters, and images."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	settingsFlagNameConstant                = "settings"
	settingsFlagUsageConstant               = "Override the settings file holding the data directory."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	commonSettingsPathConfigKeyConstant     = commonConfigurationKeyConstant + ".settings_path"
	environmentPrefixConstant               = "MEMDOC"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationSettingsPathFieldConstant  = "settings_path"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	commandBuildErrorTemplateConstant       = "unable to build %s commands: %w"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	rootCommandInfoMessageConstant          = "memdoc CLI executed"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationSearchPathConstant     = "~/.memdoc"
	versionTemplateConstant                 = "{{.Name}} version: {{.Version}}\n"
	unknownVersionConstant                  = "dev"
	migrationCommandFamilyConstant          = "migration"
	dataDirectoryCommandFamilyConstant      = "data directory"
	serverCommandFamilyConstant             = "server"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores settings shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	SettingsPath string `mapstructure:"settings_path"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Migration migrate.CommandConfiguration `mapstructure:"migration"`
	Server    server.CommandConfiguration  `mapstructure:"server"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	settingsFlagValue      string
	settingsStore          *settings.Store
	commandContextAccessor utils.CommandContextAccessor
	versionResolver        func() string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() (*Application, error) {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant, userConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver:        resolveBuildVersion,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.SetVersionTemplate(versionTemplateConstant)
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.settingsFlagValue, settingsFlagNameConstant, "", settingsFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	migrationBuilder := migrate.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() migrate.CommandConfiguration {
			return application.configuration.Tools.Migration
		},
		SettingsStoreProvider: application.resolveSettingsStore,
	}
	migrationCommands, migrationBuildError := migrationBuilder.Build()
	if migrationBuildError != nil {
		return nil, fmt.Errorf(commandBuildErrorTemplateConstant, migrationCommandFamilyConstant, migrationBuildError)
	}
	cobraCommand.AddCommand(migrationCommands...)

	dataDirectoryBuilder := datadir.CommandBuilder{
		LoggerProvider:        loggerProvider,
		DataDirectoryProvider: application.configuredDataDirectory,
	}
	dataDirectoryCommands, dataDirectoryBuildError := dataDirectoryBuilder.Build()
	if dataDirectoryBuildError != nil {
		return nil, fmt.Errorf(commandBuildErrorTemplateConstant, dataDirectoryCommandFamilyConstant, dataDirectoryBuildError)
	}
	cobraCommand.AddCommand(dataDirectoryCommands...)

	serverBuilder := server.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() server.CommandConfiguration {
			return application.configuration.Tools.Server
		},
		MigrationConfigurationProvider: func() migrate.CommandConfiguration {
			return application.configuration.Tools.Migration
		},
		SettingsStoreProvider: application.resolveSettingsStore,
	}
	serverCommand, serverBuildError := serverBuilder.Build()
	if serverBuildError != nil {
		return nil, fmt.Errorf(commandBuildErrorTemplateConstant, serverCommandFamilyConstant, serverBuildError)
	}
	cobraCommand.AddCommand(serverCommand)

	application.rootCommand = cobraCommand

	return application, nil
}

// Execute runs the command hierarchy against the process arguments.
func (application *Application) Execute() error {
	return application.ExecuteWithArguments(os.Args[1:])
}

// ExecuteWithArguments runs the command hierarchy against arguments and flushes the logger.
func (application *Application) ExecuteWithArguments(arguments []string) error {
	application.rootCommand.Version = application.versionResolver()
	application.rootCommand.SetArgs(application.normalizeArguments(arguments))

	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	application, applicationError := NewApplication()
	if applicationError != nil {
		return applicationError
	}
	return application.Execute()
}

// normalizeArguments rewrites "--toggle value" for the toggle flags of the command the arguments select.
func (application *Application) normalizeArguments(arguments []string) []string {
	targetCommand, _, findError := application.rootCommand.Find(arguments)
	if findError != nil || targetCommand == nil {
		return arguments
	}
	return flags.NormalizeToggleArguments(targetCommand.Flags(), arguments)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:     string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:    string(utils.LogFormatStructured),
		commonSettingsPathConfigKeyConstant: settings.DefaultPath,
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, settingsFlagNameConstant) {
		application.configuration.Common.SettingsPath = application.settingsFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger
	application.settingsStore = nil

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationSettingsPathFieldConstant, application.configuration.Common.SettingsPath),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// resolveSettingsStore returns the settings store for the configured path, creating it on first use.
func (application *Application) resolveSettingsStore() *settings.Store {
	if application.settingsStore == nil {
		application.settingsStore = settings.NewStore(application.configuration.Common.SettingsPath, settings.StoreDependencies{
			Logger: application.logger,
		})
	}
	return application.settingsStore
}

func (application *Application) configuredDataDirectory() (string, error) {
	return application.resolveSettingsStore().DataDirectory()
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Debug(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	return command.Help()
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}

func resolveBuildVersion() string {
	buildInfo, available := debug.ReadBuildInfo()
	if !available {
		return unknownVersionConstant
	}
	version := strings.TrimSpace(buildInfo.Main.Version)
	if len(version) == 0 || version == "(devel)" {
		return unknownVersionConstant
	}
	return version
}
