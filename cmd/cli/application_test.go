package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/memdoc/internal/settings"
)

const (
	testVersionConstant           = "v1.4.0"
	testSettingsFileNameConstant  = "config.json"
	testConfigurationFileConstant = "memdoc.yaml"
)

type applicationFixture struct {
	application  *Application
	root         string
	settingsPath string
	stdout       *bytes.Buffer
	stderr       *bytes.Buffer
}

func newApplicationFixture(testInstance *testing.T) applicationFixture {
	testInstance.Helper()
	root, evaluationError := filepath.EvalSymlinks(testInstance.TempDir())
	require.NoError(testInstance, evaluationError)
	testInstance.Setenv("HOME", root)
	testInstance.Setenv(settings.DataDirectoryEnvironmentVariable, "")

	application, applicationError := NewApplication()
	require.NoError(testInstance, applicationError)
	application.versionResolver = func() string { return testVersionConstant }

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	application.rootCommand.SetOut(stdout)
	application.rootCommand.SetErr(stderr)
	application.rootCommand.SetIn(strings.NewReader(""))

	return applicationFixture{
		application:  application,
		root:         root,
		settingsPath: filepath.Join(root, "settings", testSettingsFileNameConstant),
		stdout:       stdout,
		stderr:       stderr,
	}
}

func (fixture applicationFixture) writeSettings(testInstance *testing.T, dataDirectory string) {
	testInstance.Helper()
	encoded, encodeError := json.Marshal(map[string]any{"version": settings.CurrentVersion, "data_directory": dataDirectory})
	require.NoError(testInstance, encodeError)
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(fixture.settingsPath), 0o755))
	require.NoError(testInstance, os.WriteFile(fixture.settingsPath, encoded, 0o600))
}

func writeMemoirFiles(testInstance *testing.T, root string) {
	testInstance.Helper()
	files := map[string]string{
		"memoir.json":             `{"title":"Tidewater","author":"J. Lane","chapters":[{"id":"c1","file":"ch001-start.md","order":1}]}`,
		"chapters/ch001-start.md": "---\ntitle: Start\n---\nThe tide came in.\n",
		"images/map.png":          "png-bytes",
	}
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
		require.NoError(testInstance, os.WriteFile(absolutePath, []byte(content), 0o644))
	}
}

func TestApplicationRegistersCommands(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)

	registered := make([]string, 0)
	for _, command := range fixture.application.rootCommand.Commands() {
		registered = append(registered, command.Name())
	}
	require.ElementsMatch(testInstance, []string{"data-migrate", "data-verify", "data-estimate", "data-info", "data-validate", "serve"}, registered)
}

func TestApplicationVersionFlag(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)

	require.NoError(testInstance, fixture.application.ExecuteWithArguments([]string{"--version"}))
	require.Equal(testInstance, "memdoc version: "+testVersionConstant+"\n", fixture.stdout.String())
}

func TestInitializeConfigurationAppliesEmbeddedDefaults(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)
	rootCommand := fixture.application.rootCommand

	require.NoError(testInstance, fixture.application.initializeConfiguration(rootCommand))

	configuration := fixture.application.configuration
	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", configuration.Common.LogFormat)
	require.Equal(testInstance, settings.DefaultPath, configuration.Common.SettingsPath)
	require.True(testInstance, configuration.Tools.Migration.KeepBackup)
	require.Equal(testInstance, "sample", configuration.Tools.Migration.VerificationMode)
	require.Equal(testInstance, 5, configuration.Tools.Migration.SampleSize)
	require.Equal(testInstance, "127.0.0.1:5000", configuration.Tools.Server.Address)

	logLevel, present := fixture.application.commandContextAccessor.LogLevel(rootCommand.Context())
	require.True(testInstance, present)
	require.Equal(testInstance, "info", logLevel)
}

func TestInitializeConfigurationLayering(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		configurationContent string
		environment          map[string]string
		flagValues           map[string]string
		expectedSampleSize   int
		expectedKeepBackup   bool
		expectedAddress      string
		expectedLogLevel     string
		expectedSettingsPath string
	}{
		{
			name:                 "configuration_file",
			configurationContent: "tools:\n  migration:\n    keep_backup: false\n    sample_size: 12\n  server:\n    address: 0.0.0.0:7000\n",
			expectedSampleSize:   12,
			expectedKeepBackup:   false,
			expectedAddress:      "0.0.0.0:7000",
			expectedLogLevel:     "info",
			expectedSettingsPath: settings.DefaultPath,
		},
		{
			name:                 "environment_over_file",
			configurationContent: "tools:\n  migration:\n    sample_size: 12\n",
			environment:          map[string]string{"MEMDOC_TOOLS_MIGRATION_SAMPLE_SIZE": "20", "MEMDOC_COMMON_LOG_LEVEL": "warn"},
			expectedSampleSize:   20,
			expectedKeepBackup:   true,
			expectedAddress:      "127.0.0.1:5000",
			expectedLogLevel:     "warn",
			expectedSettingsPath: settings.DefaultPath,
		},
		{
			name:                 "flags_over_everything",
			configurationContent: "common:\n  log_level: warn\n  settings_path: /etc/memdoc/config.json\n",
			flagValues:           map[string]string{logLevelFlagNameConstant: "debug", settingsFlagNameConstant: "/srv/memdoc/config.json"},
			expectedSampleSize:   5,
			expectedKeepBackup:   true,
			expectedAddress:      "127.0.0.1:5000",
			expectedLogLevel:     "debug",
			expectedSettingsPath: "/srv/memdoc/config.json",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			fixture := newApplicationFixture(subTest)
			for environmentName, environmentValue := range testCase.environment {
				subTest.Setenv(environmentName, environmentValue)
			}
			configurationPath := filepath.Join(fixture.root, testConfigurationFileConstant)
			require.NoError(subTest, os.WriteFile(configurationPath, []byte(testCase.configurationContent), 0o600))

			rootCommand := fixture.application.rootCommand
			require.NoError(subTest, rootCommand.PersistentFlags().Set(configFileFlagNameConstant, configurationPath))
			for flagName, flagValue := range testCase.flagValues {
				require.NoError(subTest, rootCommand.PersistentFlags().Set(flagName, flagValue))
			}

			require.NoError(subTest, fixture.application.initializeConfiguration(rootCommand))

			configuration := fixture.application.configuration
			require.Equal(subTest, testCase.expectedSampleSize, configuration.Tools.Migration.SampleSize)
			require.Equal(subTest, testCase.expectedKeepBackup, configuration.Tools.Migration.KeepBackup)
			require.Equal(subTest, testCase.expectedAddress, configuration.Tools.Server.Address)
			require.Equal(subTest, testCase.expectedLogLevel, configuration.Common.LogLevel)
			require.Equal(subTest, testCase.expectedSettingsPath, configuration.Common.SettingsPath)
			require.Equal(subTest, configurationPath, fixture.application.configurationMetadata.ConfigFileUsed)
		})
	}
}

func TestInitializeConfigurationRejectsUnknownLogLevel(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)
	rootCommand := fixture.application.rootCommand
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "chatty"))

	initializationError := fixture.application.initializeConfiguration(rootCommand)
	require.Error(testInstance, initializationError)
	require.Contains(testInstance, initializationError.Error(), "unable to create logger")
}

func TestNormalizeArgumentsRewritesToggleValues(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)

	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{
			name:      "toggle_with_value",
			arguments: []string{"data-migrate", "--keep-backup", "no", "--to", "/srv/memoir"},
			expected:  []string{"data-migrate", "--keep-backup=no", "--to", "/srv/memoir"},
		},
		{
			name:      "bare_toggle",
			arguments: []string{"data-migrate", "--keep-backup", "--to", "/srv/memoir"},
			expected:  []string{"data-migrate", "--keep-backup", "--to", "/srv/memoir"},
		},
		{
			name:      "unknown_command",
			arguments: []string{"publish", "--keep-backup", "no"},
			expected:  []string{"publish", "--keep-backup", "no"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expected, fixture.application.normalizeArguments(testCase.arguments))
		})
	}
}

func TestApplicationMigratesConfiguredDataDirectory(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)
	source := filepath.Join(fixture.root, "memoir-data")
	destination := filepath.Join(fixture.root, "archive", "memoir-data")
	writeMemoirFiles(testInstance, source)
	fixture.writeSettings(testInstance, source)

	executionError := fixture.application.ExecuteWithArguments([]string{
		"--settings", fixture.settingsPath,
		"--log-level", "error",
		"data-migrate",
		"--to", destination,
		"--keep-backup", "no",
		"--verification", "full",
		"--yes",
	})
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, fixture.stdout.String(), "Migrated 3 files")
	require.Contains(testInstance, fixture.stdout.String(), "Removed "+source)

	_, sourceStatError := os.Stat(source)
	require.True(testInstance, os.IsNotExist(sourceStatError))
	copiedManifest, readError := os.ReadFile(filepath.Join(destination, "memoir.json"))
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(copiedManifest), "Tidewater")

	store := settings.NewStore(fixture.settingsPath, settings.StoreDependencies{
		LookupEnvironment: func(string) (string, bool) { return "", false },
	})
	persisted, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, destination, persisted.DataDirectory)
	require.NotNil(testInstance, persisted.LastMigration)
	require.Equal(testInstance, source, persisted.LastMigration.Source)
}

func TestApplicationValidatesPathAgainstConfiguredDirectory(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)
	source := filepath.Join(fixture.root, "memoir-data")
	writeMemoirFiles(testInstance, source)
	fixture.writeSettings(testInstance, source)

	executionError := fixture.application.ExecuteWithArguments([]string{"--settings", fixture.settingsPath, "data-validate", source})
	require.Error(testInstance, executionError)
	require.Equal(testInstance, "Rejected: This is already your current data directory\n", fixture.stdout.String())
}

func TestApplicationWithoutSubcommandPrintsHelp(testInstance *testing.T) {
	fixture := newApplicationFixture(testInstance)

	require.NoError(testInstance, fixture.application.ExecuteWithArguments([]string{"--settings", fixture.settingsPath}))
	require.Contains(testInstance, fixture.stdout.String(), "data-migrate")
}
