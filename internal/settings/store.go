package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/datadir"
	pathutils "github.com/temirov/memdoc/internal/utils/path"
)

const (
	// DefaultPath is the settings file location before home expansion.
	DefaultPath = "~/.memdoc/config.json"
	// CurrentVersion is written to newly created settings files.
	CurrentVersion = "1.0"
	// DataDirectoryEnvironmentVariable overrides the persisted data directory without rewriting the file.
	DataDirectoryEnvironmentVariable = "MEMDOC_DATA_DIRECTORY"

	defaultDataDirectoryNameConstant         = "data"
	defaultAutoSaveIntervalConstant          = 2000
	defaultThemeConstant                     = "light"
	configurationTypeConstant                = "json"
	temporaryFilePatternConstant             = ".config-*.json"
	jsonIndentConstant                       = "  "
	settingsDirectoryPermissionsConstant     = fs.FileMode(0o700)
	settingsFilePermissionsConstant          = fs.FileMode(0o600)
	versionKeyConstant                       = "version"
	dataDirectoryKeyConstant                 = "data_directory"
	createdAtKeyConstant                     = "created_at"
	autoSaveIntervalKeyConstant              = "preferences.auto_save_interval"
	themeKeyConstant                         = "preferences.theme"
	settingsReadErrorTemplateConstant        = "unable to read settings %s: %w"
	settingsDecodeErrorTemplateConstant      = "unable to decode settings %s: %w"
	settingsEncodeErrorTemplateConstant      = "unable to encode settings: %w"
	settingsWriteErrorTemplateConstant       = "unable to write settings %s: %w"
	workingDirectoryErrorTemplateConstant    = "unable to determine working directory: %w"
	logMessageSettingsCreatedConstant        = "Created settings file"
	logMessageSettingsUnreadableConstant     = "Settings file unreadable, using defaults"
	logMessageSettingsMigrationSavedConstant = "Recorded data directory migration"
	logFieldSettingsPathConstant             = "settings_path"
	logFieldManifestFoundConstant            = "manifest_found"
	logFieldDataDirectoryConstant            = "data_directory"
)

// Preferences holds editor preferences carried in the settings file.
type Preferences struct {
	AutoSaveInterval int    `json:"auto_save_interval" mapstructure:"auto_save_interval"`
	Theme            string `json:"theme" mapstructure:"theme"`
}

// MigrationRecord summarizes the most recent successful data directory migration.
type MigrationRecord struct {
	ID             string    `json:"id" mapstructure:"id"`
	Source         string    `json:"source" mapstructure:"source"`
	Destination    string    `json:"destination" mapstructure:"destination"`
	BackupLocation string    `json:"backup_location,omitempty" mapstructure:"backup_location"`
	FilesCopied    int       `json:"files_copied" mapstructure:"files_copied"`
	BytesCopied    int64     `json:"bytes_copied" mapstructure:"bytes_copied"`
	Warnings       []string  `json:"warnings,omitempty" mapstructure:"warnings"`
	CompletedAt    time.Time `json:"completed_at" mapstructure:"completed_at"`
}

// Settings is the persisted application settings document.
type Settings struct {
	Version       string           `json:"version" mapstructure:"version"`
	DataDirectory string           `json:"data_directory" mapstructure:"data_directory"`
	CreatedAt     time.Time        `json:"created_at" mapstructure:"created_at"`
	LastMigration *MigrationRecord `json:"last_migration" mapstructure:"last_migration"`
	Preferences   Preferences      `json:"preferences" mapstructure:"preferences"`
}

// StoreDependencies describes the collaborators used by Store.
type StoreDependencies struct {
	Logger            *zap.Logger
	FileSystem        afero.Fs
	Clock             func() time.Time
	WorkingDirectory  func() (string, error)
	LookupEnvironment func(string) (string, bool)
}

// Store reads and writes the settings file. Methods are safe for concurrent use within a process.
type Store struct {
	path              string
	logger            *zap.Logger
	fileSystem        afero.Fs
	clock             func() time.Time
	workingDirectory  func() (string, error)
	lookupEnvironment func(string) (string, bool)
	mutex             sync.Mutex
}

// NewStore constructs a Store for the settings file at path; a blank path selects DefaultPath.
func NewStore(path string, dependencies StoreDependencies) *Store {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		trimmedPath = DefaultPath
	}
	store := &Store{
		path:              filepath.Clean(pathutils.NewHomeExpander().Expand(trimmedPath)),
		logger:            dependencies.Logger,
		fileSystem:        dependencies.FileSystem,
		clock:             dependencies.Clock,
		workingDirectory:  dependencies.WorkingDirectory,
		lookupEnvironment: dependencies.LookupEnvironment,
	}
	if store.logger == nil {
		store.logger = zap.NewNop()
	}
	if store.fileSystem == nil {
		store.fileSystem = afero.NewOsFs()
	}
	if store.clock == nil {
		store.clock = time.Now
	}
	if store.workingDirectory == nil {
		store.workingDirectory = os.Getwd
	}
	if store.lookupEnvironment == nil {
		store.lookupEnvironment = os.LookupEnv
	}
	return store
}

// Path returns the expanded settings file location.
func (store *Store) Path() string {
	return store.path
}

// Load returns the settings, creating the file with defaults on first use. The
// DataDirectoryEnvironmentVariable override is applied to the returned value only.
func (store *Store) Load() (Settings, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	settings, loadError := store.loadPersisted()
	if loadError != nil {
		return Settings{}, loadError
	}
	if override, present := store.lookupEnvironment(DataDirectoryEnvironmentVariable); present && len(strings.TrimSpace(override)) > 0 {
		settings.DataDirectory = pathutils.NewHomeExpander().Expand(strings.TrimSpace(override))
	}
	return settings, nil
}

// DataDirectory returns the effective data directory.
func (store *Store) DataDirectory() (string, error) {
	settings, loadError := store.Load()
	if loadError != nil {
		return "", loadError
	}
	return settings.DataDirectory, nil
}

// Save writes settings atomically.
func (store *Store) Save(settings Settings) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.write(settings)
}

// RecordMigration points the data directory at the migration destination and stores the record.
func (store *Store) RecordMigration(record MigrationRecord) (Settings, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	settings, loadError := store.loadPersisted()
	if loadError != nil {
		return Settings{}, loadError
	}
	settings.DataDirectory = record.Destination
	settings.LastMigration = &record
	if writeError := store.write(settings); writeError != nil {
		return Settings{}, writeError
	}
	store.logger.Info(
		logMessageSettingsMigrationSavedConstant,
		zap.String(logFieldSettingsPathConstant, store.path),
		zap.String(logFieldDataDirectoryConstant, settings.DataDirectory),
	)
	return settings, nil
}

// Defaults returns the settings written on first run.
func (store *Store) Defaults() (Settings, error) {
	workingDirectory, workingDirectoryError := store.workingDirectory()
	if workingDirectoryError != nil {
		return Settings{}, fmt.Errorf(workingDirectoryErrorTemplateConstant, workingDirectoryError)
	}
	return Settings{
		Version:       CurrentVersion,
		DataDirectory: filepath.Join(workingDirectory, defaultDataDirectoryNameConstant),
		CreatedAt:     store.clock().UTC(),
		Preferences: Preferences{
			AutoSaveInterval: defaultAutoSaveIntervalConstant,
			Theme:            defaultThemeConstant,
		},
	}, nil
}

func (store *Store) loadPersisted() (Settings, error) {
	defaults, defaultsError := store.Defaults()
	if defaultsError != nil {
		return Settings{}, defaultsError
	}

	_, statError := store.fileSystem.Stat(store.path)
	if errors.Is(statError, fs.ErrNotExist) {
		if writeError := store.write(defaults); writeError != nil {
			return Settings{}, writeError
		}
		store.logger.Info(
			logMessageSettingsCreatedConstant,
			zap.String(logFieldSettingsPathConstant, store.path),
			zap.String(logFieldDataDirectoryConstant, defaults.DataDirectory),
			zap.Bool(logFieldManifestFoundConstant, store.hasManifest(defaults.DataDirectory)),
		)
		return defaults, nil
	}
	if statError != nil {
		return Settings{}, fmt.Errorf(settingsReadErrorTemplateConstant, store.path, statError)
	}

	settings, decodeError := store.decode(defaults)
	if decodeError != nil {
		store.logger.Warn(
			logMessageSettingsUnreadableConstant,
			zap.String(logFieldSettingsPathConstant, store.path),
			zap.Error(decodeError),
		)
		return defaults, nil
	}
	return settings, nil
}

func (store *Store) decode(defaults Settings) (Settings, error) {
	viperInstance := viper.New()
	viperInstance.SetFs(store.fileSystem)
	viperInstance.SetConfigFile(store.path)
	viperInstance.SetConfigType(configurationTypeConstant)
	viperInstance.SetDefault(versionKeyConstant, defaults.Version)
	viperInstance.SetDefault(dataDirectoryKeyConstant, defaults.DataDirectory)
	viperInstance.SetDefault(createdAtKeyConstant, defaults.CreatedAt.Format(time.RFC3339Nano))
	viperInstance.SetDefault(autoSaveIntervalKeyConstant, defaults.Preferences.AutoSaveInterval)
	viperInstance.SetDefault(themeKeyConstant, defaults.Preferences.Theme)

	if readError := viperInstance.ReadInConfig(); readError != nil {
		return Settings{}, fmt.Errorf(settingsReadErrorTemplateConstant, store.path, readError)
	}

	var settings Settings
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	))
	if unmarshalError := viperInstance.Unmarshal(&settings, decodeHook); unmarshalError != nil {
		return Settings{}, fmt.Errorf(settingsDecodeErrorTemplateConstant, store.path, unmarshalError)
	}
	return settings, nil
}

func (store *Store) write(settings Settings) error {
	encoded, encodeError := json.MarshalIndent(settings, "", jsonIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(settingsEncodeErrorTemplateConstant, encodeError)
	}

	directory := filepath.Dir(store.path)
	if mkdirError := store.fileSystem.MkdirAll(directory, settingsDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(settingsWriteErrorTemplateConstant, store.path, mkdirError)
	}
	temporaryFile, createError := afero.TempFile(store.fileSystem, directory, temporaryFilePatternConstant)
	if createError != nil {
		return fmt.Errorf(settingsWriteErrorTemplateConstant, store.path, createError)
	}
	temporaryPath := temporaryFile.Name()

	_, writeError := temporaryFile.Write(append(encoded, '\n'))
	closeError := temporaryFile.Close()
	if writeError == nil {
		writeError = closeError
	}
	if writeError == nil {
		writeError = store.fileSystem.Chmod(temporaryPath, settingsFilePermissionsConstant)
	}
	if writeError == nil {
		writeError = store.fileSystem.Rename(temporaryPath, store.path)
	}
	if writeError != nil {
		_ = store.fileSystem.Remove(temporaryPath)
		return fmt.Errorf(settingsWriteErrorTemplateConstant, store.path, writeError)
	}
	return nil
}

func (store *Store) hasManifest(dataDirectory string) bool {
	exists, existsError := afero.Exists(store.fileSystem, datadir.NewLayout(dataDirectory).ManifestPath())
	return existsError == nil && exists
}
