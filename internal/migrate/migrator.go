package migrate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/datadir"
	pathutils "github.com/temirov/memdoc/internal/utils/path"
)

const (
	// SpaceSafetyMarginDivisor sets the free-space margin: a tenth of the source size on top of it.
	SpaceSafetyMarginDivisor = 10
	// BackupTimestampLayout formats the suffix of backup directory names.
	BackupTimestampLayout = "20060102_150405"

	backupNameTemplateConstant              = "%s.backup.%s"
	backupCollisionSuffixTemplateConstant   = "%s_%d"
	bytesPerGigabyteConstant                = 1024 * 1024 * 1024
	ownerTraversalPermissionsConstant       = fs.FileMode(0o700)
	maximumBackupCollisionAttemptsConstant  = 100
	sourcePathEmptyMessageConstant          = "Source path is empty"
	destinationPathEmptyMessageConstant     = "Destination path is empty"
	sourceNotFoundTemplateConstant          = "Source directory does not exist: %s"
	sourceNotDirectoryTemplateConstant      = "Source is not a directory: %s"
	sameSourceAndDestinationMessageConstant = "Source and destination are the same"
	destinationInsideSourceTemplateConstant = "Destination %s is inside the source directory"
	destinationNotDirectoryTemplateConstant = "Destination exists but is not a directory: %s"
	destinationNotEmptyTemplateConstant     = "Destination directory is not empty: %s"
	insufficientDiskSpaceTemplateConstant   = "Insufficient disk space. Need %.2f GB, have %.2f GB free"
	inspectPathFailedTemplateConstant       = "Unable to inspect %s"
	measureSourceFailedTemplateConstant     = "Unable to measure source directory %s"
	freeSpaceFailedTemplateConstant         = "Unable to determine free space for %s"
	createDestinationFailedTemplateConstant = "Unable to create destination directory %s"
	copyFileFailedTemplateConstant          = "Unable to copy %s"
	readSourceEntryFailedTemplateConstant   = "Unable to read %s"
	verificationFailedTemplateConstant      = "Migration verification failed: %s"
	backupFailedTemplateConstant            = "Could not create backup, the source remains at %s: %v"
	sourceRemovalFailedTemplateConstant     = "Could not remove source directory %s: %v"
	logMessageMigrationStartedConstant      = "Data directory migration started"
	logMessageMigrationCompletedConstant    = "Data directory migration completed"
	logMessageMigrationFailedConstant       = "Data directory migration failed"
	logMessageFileCopiedConstant            = "Copied file"
	logMessageEntrySkippedConstant          = "Skipped non-regular entry"
	logMessageCleanupFailedConstant         = "Destination cleanup failed"
	logMessageMigrationWarningConstant      = "Data directory migration warning"
	logMessageVolumeDetectionFailedConstant = "Volume detection failed, assuming separate volumes"
	logFieldMigrationIdentifierConstant     = "migration_id"
	logFieldKeepBackupConstant              = "keep_backup"
	logFieldFilesCopiedConstant             = "files_copied"
	logFieldBytesCopiedConstant             = "bytes_copied"
	logFieldBackupLocationConstant          = "backup_location"
	logFieldFailureKindConstant             = "failure_kind"
	logFieldWarningKindConstant             = "warning_kind"
	logFieldDurationConstant                = "duration"
	logFieldPathConstant                    = "path"
	logFieldModeConstant                    = "mode"
)

// Clock supplies the current time.
type Clock func() time.Time

// IdentifierGenerator produces unique migration identifiers.
type IdentifierGenerator func() string

// MigratorDependencies describes the collaborators used by Migrator. Unset fields fall back to
// operating system implementations.
type MigratorDependencies struct {
	Logger              *zap.Logger
	FileSystem          afero.Fs
	VolumeInspector     VolumeInspector
	PathResolver        *pathutils.PathResolver
	Sampler             Sampler
	Observer            Observer
	Clock               Clock
	IdentifierGenerator IdentifierGenerator
}

// Migrator relocates a data directory. A Migrator holds no per-call state and the caller
// guarantees exclusive access to both trees for the duration of Migrate.
type Migrator struct {
	logger              *zap.Logger
	fileSystem          afero.Fs
	volumeInspector     VolumeInspector
	pathResolver        *pathutils.PathResolver
	observer            Observer
	clock               Clock
	identifierGenerator IdentifierGenerator
	verifier            *Verifier
}

type migrationPlan struct {
	source             string
	destination        string
	sourceMode         fs.FileMode
	destinationExisted bool
	statistics         datadir.TreeStatistics
}

type directoryMetadata struct {
	path             string
	mode             fs.FileMode
	modificationTime time.Time
}

// NewMigrator constructs a Migrator.
func NewMigrator(dependencies MigratorDependencies) *Migrator {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	volumeInspector := dependencies.VolumeInspector
	if volumeInspector == nil {
		volumeInspector = OperatingSystemVolumeInspector{}
	}
	pathResolver := dependencies.PathResolver
	if pathResolver == nil {
		pathResolver = pathutils.NewPathResolver()
	}
	observer := dependencies.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	identifierGenerator := dependencies.IdentifierGenerator
	if identifierGenerator == nil {
		identifierGenerator = uuid.NewString
	}

	return &Migrator{
		logger:              logger,
		fileSystem:          fileSystem,
		volumeInspector:     volumeInspector,
		pathResolver:        pathResolver,
		observer:            observer,
		clock:               clock,
		identifierGenerator: identifierGenerator,
		verifier: NewVerifier(VerifierDependencies{
			Logger:     logger,
			FileSystem: fileSystem,
			Sampler:    dependencies.Sampler,
		}),
	}
}

// Verifier exposes the verifier the migrator uses for its verification phase.
func (migrator *Migrator) Verifier() *Verifier {
	return migrator.verifier
}

// Migrate validates, copies, verifies, and finalizes a data directory move. The returned
// error is nil on success and a *MigrationError otherwise; warnings never fail a migration.
func (migrator *Migrator) Migrate(options MigrationOptions) (MigrationResult, error) {
	result := MigrationResult{
		ID:          migrator.identifierGenerator(),
		Source:      options.Source,
		Destination: options.Destination,
		Warnings:    []Warning{},
		StartedAt:   migrator.clock(),
	}
	logger := migrator.logger.With(zap.String(logFieldMigrationIdentifierConstant, result.ID))
	logger.Info(
		logMessageMigrationStartedConstant,
		zap.String(logFieldSourceConstant, options.Source),
		zap.String(logFieldDestinationConstant, options.Destination),
		zap.Bool(logFieldKeepBackupConstant, options.KeepBackup),
		zap.String(logFieldModeConstant, string(options.VerificationMode)),
	)

	plan, validationError := migrator.validate(options.Source, options.Destination)
	if validationError != nil {
		return migrator.finish(logger, result, validationError)
	}
	result.Source = plan.source
	result.Destination = plan.destination

	digests, copyError := migrator.copyTree(logger, plan, options, &result.Statistics)
	if copyError != nil {
		migrator.cleanup(logger, plan)
		return migrator.finish(logger, result, copyError)
	}

	verification := migrator.verifier.Verify(plan.source, plan.destination, VerificationOptions{
		Mode:       options.VerificationMode,
		SampleSize: options.SampleSize,
		Expected:   digests,
	})
	if !verification.Valid {
		migrator.observer.RecordVerificationFailure(verification.Reason)
		migrator.cleanup(logger, plan)
		return migrator.finish(logger, result, &MigrationError{
			Kind:               FailureVerificationFailed,
			Message:            fmt.Sprintf(verificationFailedTemplateConstant, verification.Message),
			RelativePath:       verification.RelativePath,
			VerificationReason: verification.Reason,
		})
	}

	result.BackupLocation, result.Warnings = migrator.finalize(plan, options.KeepBackup)
	for _, warning := range result.Warnings {
		logger.Warn(
			logMessageMigrationWarningConstant,
			zap.String(logFieldWarningKindConstant, string(warning.Kind)),
			zap.String(logFieldReasonConstant, warning.Message),
		)
	}
	return migrator.finish(logger, result, nil)
}

func (migrator *Migrator) finish(logger *zap.Logger, result MigrationResult, migrationError *MigrationError) (MigrationResult, error) {
	result.CompletedAt = migrator.clock()
	if migrationError != nil {
		logger.Error(
			logMessageMigrationFailedConstant,
			zap.String(logFieldFailureKindConstant, string(migrationError.Kind)),
			zap.String(logFieldRelativePathConstant, migrationError.RelativePath),
			zap.Int64(logFieldBytesCopiedConstant, result.Statistics.BytesCopied),
			zap.Error(migrationError),
		)
		migrator.observer.RecordMigration(result.Duration(), result, migrationError)
		return result, migrationError
	}

	logger.Info(
		logMessageMigrationCompletedConstant,
		zap.String(logFieldSourceConstant, result.Source),
		zap.String(logFieldDestinationConstant, result.Destination),
		zap.Int(logFieldFilesCopiedConstant, result.Statistics.FilesCopied),
		zap.Int64(logFieldBytesCopiedConstant, result.Statistics.BytesCopied),
		zap.String(logFieldBackupLocationConstant, result.BackupLocation),
		zap.Duration(logFieldDurationConstant, result.Duration()),
	)
	migrator.observer.RecordMigration(result.Duration(), result, nil)
	return result, nil
}

func (migrator *Migrator) validate(source string, destination string) (migrationPlan, *MigrationError) {
	resolvedSource, sourceResolveError := migrator.pathResolver.Resolve(source)
	if sourceResolveError != nil {
		return migrationPlan{}, newMigrationError(FailureSourceNotFound, sourcePathEmptyMessageConstant, sourceResolveError)
	}
	resolvedDestination, destinationResolveError := migrator.pathResolver.Resolve(destination)
	if destinationResolveError != nil {
		return migrationPlan{}, newMigrationError(FailureDestinationNotDirectory, destinationPathEmptyMessageConstant, destinationResolveError)
	}

	sourceInfo, sourceStatError := migrator.fileSystem.Stat(resolvedSource)
	if sourceStatError != nil {
		if errors.Is(sourceStatError, fs.ErrNotExist) {
			return migrationPlan{}, newMigrationError(FailureSourceNotFound, fmt.Sprintf(sourceNotFoundTemplateConstant, resolvedSource), nil)
		}
		return migrationPlan{}, newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(inspectPathFailedTemplateConstant, resolvedSource), sourceStatError)
	}
	if !sourceInfo.IsDir() {
		return migrationPlan{}, newMigrationError(FailureSourceNotDirectory, fmt.Sprintf(sourceNotDirectoryTemplateConstant, resolvedSource), nil)
	}

	destinationInfo, destinationStatError := migrator.fileSystem.Stat(resolvedDestination)
	destinationExists := destinationStatError == nil
	if resolvedSource == resolvedDestination || (destinationExists && os.SameFile(sourceInfo, destinationInfo)) {
		return migrationPlan{}, newMigrationError(FailureSameSourceAndDestination, sameSourceAndDestinationMessageConstant, nil)
	}
	if pathutils.IsWithin(resolvedSource, resolvedDestination) {
		return migrationPlan{}, newMigrationError(FailureDestinationInsideSource, fmt.Sprintf(destinationInsideSourceTemplateConstant, resolvedDestination), nil)
	}

	if destinationStatError != nil && !errors.Is(destinationStatError, fs.ErrNotExist) {
		return migrationPlan{}, newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(inspectPathFailedTemplateConstant, resolvedDestination), destinationStatError)
	}
	if destinationExists {
		if !destinationInfo.IsDir() {
			return migrationPlan{}, newMigrationError(FailureDestinationNotDirectory, fmt.Sprintf(destinationNotDirectoryTemplateConstant, resolvedDestination), nil)
		}
		empty, emptyError := datadir.IsEmptyDirectory(migrator.fileSystem, resolvedDestination)
		if emptyError != nil {
			return migrationPlan{}, newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(inspectPathFailedTemplateConstant, resolvedDestination), emptyError)
		}
		if !empty {
			return migrationPlan{}, newMigrationError(FailureDestinationNotEmpty, fmt.Sprintf(destinationNotEmptyTemplateConstant, resolvedDestination), nil)
		}
	}

	statistics, measureError := datadir.Measure(migrator.fileSystem, resolvedSource)
	if measureError != nil {
		return migrationPlan{}, newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(measureSourceFailedTemplateConstant, resolvedSource), measureError)
	}
	if spaceError := migrator.checkFreeSpace(resolvedDestination, statistics.TotalBytes); spaceError != nil {
		return migrationPlan{}, spaceError
	}

	return migrationPlan{
		source:             resolvedSource,
		destination:        resolvedDestination,
		sourceMode:         sourceInfo.Mode().Perm(),
		destinationExisted: destinationExists,
		statistics:         statistics,
	}, nil
}

// RequiredBytes returns the free space needed to migrate totalBytes.
func RequiredBytes(totalBytes int64) uint64 {
	if totalBytes <= 0 {
		return 0
	}
	sourceBytes := uint64(totalBytes)
	return sourceBytes + (sourceBytes+SpaceSafetyMarginDivisor-1)/SpaceSafetyMarginDivisor
}

func (migrator *Migrator) checkFreeSpace(destination string, totalBytes int64) *MigrationError {
	existingAncestor, ancestorError := migrator.nearestExistingAncestor(destination)
	if ancestorError != nil {
		return newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(freeSpaceFailedTemplateConstant, destination), ancestorError)
	}
	availableBytes, availableError := migrator.volumeInspector.AvailableBytes(existingAncestor)
	if availableError != nil {
		return newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(freeSpaceFailedTemplateConstant, destination), availableError)
	}

	requiredBytes := RequiredBytes(totalBytes)
	if availableBytes >= requiredBytes {
		return nil
	}
	spaceError := newMigrationError(
		FailureInsufficientDiskSpace,
		fmt.Sprintf(insufficientDiskSpaceTemplateConstant, float64(requiredBytes)/bytesPerGigabyteConstant, float64(availableBytes)/bytesPerGigabyteConstant),
		nil,
	)
	spaceError.RequiredBytes = requiredBytes
	spaceError.AvailableBytes = availableBytes
	return spaceError
}

func (migrator *Migrator) nearestExistingAncestor(path string) (string, error) {
	currentPath := filepath.Clean(path)
	for {
		_, statError := migrator.fileSystem.Stat(currentPath)
		if statError == nil {
			return currentPath, nil
		}
		if !errors.Is(statError, fs.ErrNotExist) {
			return "", statError
		}
		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", statError
		}
		currentPath = parentPath
	}
}

func (migrator *Migrator) copyTree(logger *zap.Logger, plan migrationPlan, options MigrationOptions, statistics *Statistics) (ChecksumManifest, *MigrationError) {
	if !plan.destinationExisted {
		if mkdirError := migrator.fileSystem.MkdirAll(plan.destination, plan.sourceMode|ownerTraversalPermissionsConstant); mkdirError != nil {
			return nil, newMigrationError(FailureCopyFailed, fmt.Sprintf(createDestinationFailedTemplateConstant, plan.destination), mkdirError)
		}
	}

	var digests ChecksumManifest
	if options.VerificationMode == VerificationModeFull {
		digests = ChecksumManifest{}
	}
	var directories []directoryMetadata

	walkError := afero.Walk(migrator.fileSystem, plan.source, func(path string, info fs.FileInfo, visitError error) error {
		relativePath, relativeError := filepath.Rel(plan.source, path)
		if relativeError != nil {
			return newMigrationError(FailureCopyFailed, fmt.Sprintf(readSourceEntryFailedTemplateConstant, path), relativeError)
		}
		if visitError != nil {
			copyError := newMigrationError(FailureCopyFailed, fmt.Sprintf(readSourceEntryFailedTemplateConstant, relativePath), visitError)
			copyError.RelativePath = relativePath
			return copyError
		}

		targetPath := filepath.Join(plan.destination, relativePath)
		switch {
		case info.IsDir():
			if relativePath != "." {
				if mkdirError := migrator.fileSystem.Mkdir(targetPath, info.Mode().Perm()|ownerTraversalPermissionsConstant); mkdirError != nil {
					copyError := newMigrationError(FailureCopyFailed, fmt.Sprintf(copyFileFailedTemplateConstant, relativePath), mkdirError)
					copyError.RelativePath = relativePath
					return copyError
				}
			}
			directories = append(directories, directoryMetadata{path: targetPath, mode: info.Mode().Perm(), modificationTime: info.ModTime()})
			return nil
		case info.Mode().IsRegular():
			checksum, copyFileError := migrator.copyFile(path, targetPath, info, digests != nil)
			if copyFileError != nil {
				copyError := newMigrationError(FailureCopyFailed, fmt.Sprintf(copyFileFailedTemplateConstant, relativePath), copyFileError)
				copyError.RelativePath = relativePath
				return copyError
			}
			if digests != nil {
				digests[relativePath] = checksum
			}
			statistics.FilesCopied++
			statistics.BytesCopied += info.Size()
			logger.Debug(logMessageFileCopiedConstant, zap.String(logFieldRelativePathConstant, relativePath), zap.Int64(logFieldBytesCopiedConstant, statistics.BytesCopied))
			if options.Progress != nil {
				options.Progress(statistics.BytesCopied, plan.statistics.TotalBytes)
			}
			return nil
		default:
			logger.Debug(logMessageEntrySkippedConstant, zap.String(logFieldRelativePathConstant, relativePath))
			return nil
		}
	})
	if walkError != nil {
		var copyError *MigrationError
		if errors.As(walkError, &copyError) {
			return nil, copyError
		}
		return nil, newMigrationError(FailureCopyFailed, fmt.Sprintf(readSourceEntryFailedTemplateConstant, plan.source), walkError)
	}

	for index := len(directories) - 1; index >= 0; index-- {
		directory := directories[index]
		if directory.path == plan.destination && plan.destinationExisted {
			continue
		}
		_ = migrator.fileSystem.Chmod(directory.path, directory.mode)
		_ = migrator.fileSystem.Chtimes(directory.path, directory.modificationTime, directory.modificationTime)
	}
	return digests, nil
}

func (migrator *Migrator) copyFile(sourcePath string, targetPath string, info fs.FileInfo, computeChecksum bool) (Checksum, error) {
	sourceFile, openError := migrator.fileSystem.Open(sourcePath)
	if openError != nil {
		return "", openError
	}
	defer sourceFile.Close()

	targetFile, createError := migrator.fileSystem.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if createError != nil {
		return "", createError
	}

	var writer io.Writer = targetFile
	var digest *xxhash.Digest
	if computeChecksum {
		digest = xxhash.New()
		writer = io.MultiWriter(targetFile, digest)
	}
	if _, copyError := io.Copy(writer, sourceFile); copyError != nil {
		_ = targetFile.Close()
		return "", copyError
	}
	if closeError := targetFile.Close(); closeError != nil {
		return "", closeError
	}

	if chmodError := migrator.fileSystem.Chmod(targetPath, info.Mode().Perm()); chmodError != nil {
		return "", chmodError
	}
	if chtimesError := migrator.fileSystem.Chtimes(targetPath, info.ModTime(), info.ModTime()); chtimesError != nil {
		return "", chtimesError
	}
	if digest == nil {
		return "", nil
	}
	return encodeDigest(digest), nil
}

// cleanup restores the destination to its pre-migration state. Failures are logged only.
func (migrator *Migrator) cleanup(logger *zap.Logger, plan migrationPlan) {
	if !plan.destinationExisted {
		if removeError := migrator.fileSystem.RemoveAll(plan.destination); removeError != nil {
			logger.Warn(logMessageCleanupFailedConstant, zap.String(logFieldPathConstant, plan.destination), zap.Error(removeError))
		}
		return
	}

	entries, readError := afero.ReadDir(migrator.fileSystem, plan.destination)
	if readError != nil {
		logger.Warn(logMessageCleanupFailedConstant, zap.String(logFieldPathConstant, plan.destination), zap.Error(readError))
		return
	}
	for _, entry := range entries {
		entryPath := filepath.Join(plan.destination, entry.Name())
		if removeError := migrator.fileSystem.RemoveAll(entryPath); removeError != nil {
			logger.Warn(logMessageCleanupFailedConstant, zap.String(logFieldPathConstant, entryPath), zap.Error(removeError))
		}
	}
}

func (migrator *Migrator) finalize(plan migrationPlan, keepBackup bool) (string, []Warning) {
	warnings := []Warning{}
	if !keepBackup {
		if removeError := migrator.fileSystem.RemoveAll(plan.source); removeError != nil {
			warnings = append(warnings, Warning{
				Kind:    WarningSourceRemovalFailed,
				Message: fmt.Sprintf(sourceRemovalFailedTemplateConstant, plan.source, removeError),
			})
		}
		return "", warnings
	}

	backupPath := migrator.backupPath(plan.source)
	if renameError := migrator.fileSystem.Rename(plan.source, backupPath); renameError != nil {
		warnings = append(warnings, Warning{
			Kind:    WarningBackupFailed,
			Message: fmt.Sprintf(backupFailedTemplateConstant, plan.source, renameError),
		})
		return "", warnings
	}
	return backupPath, warnings
}

// BackupName returns the backup directory name for sourceName at moment.
func BackupName(sourceName string, moment time.Time) string {
	return fmt.Sprintf(backupNameTemplateConstant, sourceName, moment.Format(BackupTimestampLayout))
}

func (migrator *Migrator) backupPath(source string) string {
	basePath := filepath.Join(filepath.Dir(source), BackupName(filepath.Base(source), migrator.clock()))
	candidate := basePath
	for attempt := 2; attempt <= maximumBackupCollisionAttemptsConstant; attempt++ {
		if _, statError := migrator.fileSystem.Stat(candidate); errors.Is(statError, fs.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf(backupCollisionSuffixTemplateConstant, basePath, attempt)
	}
	return candidate
}

// Estimate measures source and predicts the migration duration to destination.
func (migrator *Migrator) Estimate(source string, destination string) (Estimate, error) {
	resolvedSource, resolveError := migrator.pathResolver.Resolve(source)
	if resolveError != nil {
		return Estimate{}, newMigrationError(FailureSourceNotFound, sourcePathEmptyMessageConstant, resolveError)
	}
	sourceInfo, statError := migrator.fileSystem.Stat(resolvedSource)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return Estimate{}, newMigrationError(FailureSourceNotFound, fmt.Sprintf(sourceNotFoundTemplateConstant, resolvedSource), nil)
		}
		return Estimate{}, newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(inspectPathFailedTemplateConstant, resolvedSource), statError)
	}
	if !sourceInfo.IsDir() {
		return Estimate{}, newMigrationError(FailureSourceNotDirectory, fmt.Sprintf(sourceNotDirectoryTemplateConstant, resolvedSource), nil)
	}

	statistics, measureError := datadir.Measure(migrator.fileSystem, resolvedSource)
	if measureError != nil {
		return Estimate{}, newMigrationError(FailureFilesystemUnavailable, fmt.Sprintf(measureSourceFailedTemplateConstant, resolvedSource), measureError)
	}

	sameVolume := false
	resolvedDestination, destinationError := migrator.pathResolver.Resolve(destination)
	if destinationError == nil {
		sameVolume, destinationError = migrator.sameVolume(resolvedSource, resolvedDestination)
	}
	if destinationError != nil {
		migrator.logger.Debug(logMessageVolumeDetectionFailedConstant, zap.String(logFieldDestinationConstant, destination), zap.Error(destinationError))
	}

	return Estimate{
		TotalBytes: statistics.TotalBytes,
		FileCount:  statistics.FileCount,
		SameVolume: sameVolume,
		Duration:   EstimateDuration(statistics.TotalBytes, sameVolume),
	}, nil
}

func (migrator *Migrator) sameVolume(source string, destination string) (bool, error) {
	destinationAncestor, ancestorError := migrator.nearestExistingAncestor(destination)
	if ancestorError != nil {
		return false, ancestorError
	}
	sourceIdentity, sourceError := migrator.volumeInspector.VolumeIdentity(source)
	if sourceError != nil {
		return false, sourceError
	}
	destinationIdentity, destinationError := migrator.volumeInspector.VolumeIdentity(destinationAncestor)
	if destinationError != nil {
		return false, destinationError
	}
	return sourceIdentity == destinationIdentity, nil
}
