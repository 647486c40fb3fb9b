package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/datadir"
)

// VerificationReason names the check that rejected a copy.
type VerificationReason string

// Verification failure reasons.
const (
	ReasonDestinationMissing      VerificationReason = "destination_missing"
	ReasonDestinationNotDirectory VerificationReason = "destination_not_directory"
	ReasonManifestMissing         VerificationReason = "manifest_missing"
	ReasonManifestMismatch        VerificationReason = "manifest_mismatch"
	ReasonSubdirectoryMissing     VerificationReason = "subdirectory_missing"
	ReasonFileCountMismatch       VerificationReason = "file_count_mismatch"
	ReasonFileMissing             VerificationReason = "file_missing"
	ReasonChecksumMismatch        VerificationReason = "checksum_mismatch"
	ReasonUnreadable              VerificationReason = "unreadable"
)

const (
	verificationPassedMessageConstant      = "Verification passed"
	destinationMissingMessageConstant      = "Destination directory does not exist"
	destinationNotDirectoryMessageConstant = "Destination exists but is not a directory"
	manifestMissingTemplateConstant        = "%s not found in destination"
	manifestMismatchTemplateConstant       = "%s differs between source and destination"
	subdirectoryMissingTemplateConstant    = "%s/ directory not found in destination"
	subdirectoryEmptyTemplateConstant      = "%s/ directory is empty in destination"
	fileCountMismatchTemplateConstant      = "File count mismatch: source has %d, destination has %d"
	fileMissingTemplateConstant            = "File missing in destination: %s"
	checksumMismatchTemplateConstant       = "Checksum mismatch: %s"
	unreadableTemplateConstant             = "Unable to read %s: %v"
	logMessageVerificationFailedConstant   = "Verification failed"
	logMessageVerificationPassedConstant   = "Verification passed"
	logFieldSourceConstant                 = "source"
	logFieldDestinationConstant            = "destination"
	logFieldReasonConstant                 = "reason"
	logFieldRelativePathConstant           = "relative_path"
	logFieldCheckedFilesConstant           = "checked_files"
	logFieldVerificationModeConstant       = "verification_mode"
	sourceTreeLabelConstant                = "source"
	destinationTreeLabelConstant           = "destination"
)

// VerificationOptions tunes Verifier.Verify.
type VerificationOptions struct {
	Mode       VerificationMode
	SampleSize int
	// Expected holds source digests captured while copying; in full mode files missing
	// from it are hashed from the source instead.
	Expected ChecksumManifest
}

// VerificationResult reports the outcome of comparing a copy with its source.
type VerificationResult struct {
	Valid                bool               `json:"valid"`
	Reason               VerificationReason `json:"reason,omitempty"`
	Message              string             `json:"message"`
	RelativePath         string             `json:"relative_path,omitempty"`
	SourceFileCount      int                `json:"source_file_count"`
	DestinationFileCount int                `json:"destination_file_count"`
	CheckedFiles         int                `json:"checked_files"`
}

// VerifierDependencies describes the collaborators used by Verifier.
type VerifierDependencies struct {
	Logger     *zap.Logger
	FileSystem afero.Fs
	Sampler    Sampler
}

// Verifier checks that a destination tree is a faithful copy of a source tree without
// modifying either.
type Verifier struct {
	logger     *zap.Logger
	fileSystem afero.Fs
	sampler    Sampler
}

// NewVerifier constructs a Verifier, filling unset dependencies with operating system defaults.
func NewVerifier(dependencies VerifierDependencies) *Verifier {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	sampler := dependencies.Sampler
	if sampler == nil {
		sampler = RandomSampler{}
	}
	return &Verifier{logger: logger, fileSystem: fileSystem, sampler: sampler}
}

// Verify compares destination against source.
func (verifier *Verifier) Verify(source string, destination string, options VerificationOptions) VerificationResult {
	result := verifier.verify(filepath.Clean(source), filepath.Clean(destination), options)
	if result.Valid {
		verifier.logger.Debug(
			logMessageVerificationPassedConstant,
			zap.String(logFieldSourceConstant, source),
			zap.String(logFieldDestinationConstant, destination),
			zap.Int(logFieldCheckedFilesConstant, result.CheckedFiles),
			zap.String(logFieldVerificationModeConstant, string(options.Mode)),
		)
		return result
	}
	verifier.logger.Warn(
		logMessageVerificationFailedConstant,
		zap.String(logFieldSourceConstant, source),
		zap.String(logFieldDestinationConstant, destination),
		zap.String(logFieldReasonConstant, string(result.Reason)),
		zap.String(logFieldRelativePathConstant, result.RelativePath),
	)
	return result
}

func (verifier *Verifier) verify(source string, destination string, options VerificationOptions) VerificationResult {
	destinationInfo, destinationError := verifier.fileSystem.Stat(destination)
	if destinationError != nil {
		if errors.Is(destinationError, fs.ErrNotExist) {
			return failedVerification(ReasonDestinationMissing, destinationMissingMessageConstant, "")
		}
		return unreadableVerification(destinationTreeLabelConstant, destinationError)
	}
	if !destinationInfo.IsDir() {
		return failedVerification(ReasonDestinationNotDirectory, destinationNotDirectoryMessageConstant, "")
	}

	if structureResult, structureValid := verifier.verifyStructure(datadir.NewLayout(source), datadir.NewLayout(destination)); !structureValid {
		return structureResult
	}

	sourceFiles, sourceListError := datadir.ListRegularFiles(verifier.fileSystem, source)
	if sourceListError != nil {
		return unreadableVerification(sourceTreeLabelConstant, sourceListError)
	}
	destinationStatistics, measureError := datadir.Measure(verifier.fileSystem, destination)
	if measureError != nil {
		return unreadableVerification(destinationTreeLabelConstant, measureError)
	}

	result := VerificationResult{SourceFileCount: len(sourceFiles), DestinationFileCount: destinationStatistics.FileCount}
	if result.SourceFileCount != result.DestinationFileCount {
		result.Reason = ReasonFileCountMismatch
		result.Message = fmt.Sprintf(fileCountMismatchTemplateConstant, result.SourceFileCount, result.DestinationFileCount)
		return result
	}

	candidates := sourceFiles
	if options.Mode != VerificationModeFull {
		sampleSize := options.SampleSize
		if sampleSize <= 0 {
			sampleSize = DefaultSampleSize
		}
		candidates = verifier.sampler.Sample(sourceFiles, sampleSize)
	}

	for _, relativePath := range candidates {
		failure, failed := verifier.compareFile(source, destination, relativePath, options.Expected)
		if failed {
			failure.SourceFileCount = result.SourceFileCount
			failure.DestinationFileCount = result.DestinationFileCount
			failure.CheckedFiles = result.CheckedFiles
			return failure
		}
		result.CheckedFiles++
	}

	result.Valid = true
	result.Message = verificationPassedMessageConstant
	return result
}

func (verifier *Verifier) verifyStructure(sourceLayout datadir.Layout, destinationLayout datadir.Layout) (VerificationResult, bool) {
	if _, manifestError := verifier.fileSystem.Stat(sourceLayout.ManifestPath()); manifestError != nil {
		if errors.Is(manifestError, fs.ErrNotExist) {
			return VerificationResult{}, true
		}
		return unreadableVerification(datadir.ManifestFileName, manifestError), false
	}

	if _, manifestError := verifier.fileSystem.Stat(destinationLayout.ManifestPath()); manifestError != nil {
		if errors.Is(manifestError, fs.ErrNotExist) {
			return failedVerification(ReasonManifestMissing, fmt.Sprintf(manifestMissingTemplateConstant, datadir.ManifestFileName), datadir.ManifestFileName), false
		}
		return unreadableVerification(datadir.ManifestFileName, manifestError), false
	}
	if failure, failed := verifier.compareFile(sourceLayout.Root, destinationLayout.Root, datadir.ManifestFileName, nil); failed {
		if failure.Reason == ReasonChecksumMismatch {
			failure.Reason = ReasonManifestMismatch
			failure.Message = fmt.Sprintf(manifestMismatchTemplateConstant, datadir.ManifestFileName)
		}
		return failure, false
	}

	for _, subdirectoryName := range datadir.RequiredSubdirectories() {
		sourceSubdirectory := filepath.Join(sourceLayout.Root, subdirectoryName)
		sourceInfo, sourceStatError := verifier.fileSystem.Stat(sourceSubdirectory)
		if sourceStatError != nil || !sourceInfo.IsDir() {
			continue
		}

		destinationSubdirectory := filepath.Join(destinationLayout.Root, subdirectoryName)
		destinationInfo, destinationStatError := verifier.fileSystem.Stat(destinationSubdirectory)
		if destinationStatError != nil || !destinationInfo.IsDir() {
			return failedVerification(ReasonSubdirectoryMissing, fmt.Sprintf(subdirectoryMissingTemplateConstant, subdirectoryName), subdirectoryName), false
		}

		sourceEmpty, sourceEmptyError := datadir.IsEmptyDirectory(verifier.fileSystem, sourceSubdirectory)
		if sourceEmptyError != nil {
			return unreadableVerification(sourceSubdirectory, sourceEmptyError), false
		}
		if sourceEmpty {
			continue
		}
		destinationEmpty, destinationEmptyError := datadir.IsEmptyDirectory(verifier.fileSystem, destinationSubdirectory)
		if destinationEmptyError != nil {
			return unreadableVerification(destinationSubdirectory, destinationEmptyError), false
		}
		if destinationEmpty {
			return failedVerification(ReasonSubdirectoryMissing, fmt.Sprintf(subdirectoryEmptyTemplateConstant, subdirectoryName), subdirectoryName), false
		}
	}
	return VerificationResult{}, true
}

func (verifier *Verifier) compareFile(source string, destination string, relativePath string, expected ChecksumManifest) (VerificationResult, bool) {
	destinationPath := filepath.Join(destination, relativePath)
	destinationInfo, statError := verifier.fileSystem.Stat(destinationPath)
	if statError != nil || !destinationInfo.Mode().IsRegular() {
		return failedVerification(ReasonFileMissing, fmt.Sprintf(fileMissingTemplateConstant, relativePath), relativePath), true
	}

	sourceChecksum, known := expected[relativePath]
	if !known {
		computedChecksum, checksumError := ChecksumFile(verifier.fileSystem, filepath.Join(source, relativePath))
		if checksumError != nil {
			failure := unreadableVerification(relativePath, checksumError)
			failure.RelativePath = relativePath
			return failure, true
		}
		sourceChecksum = computedChecksum
	}

	destinationChecksum, checksumError := ChecksumFile(verifier.fileSystem, destinationPath)
	if checksumError != nil {
		failure := unreadableVerification(relativePath, checksumError)
		failure.RelativePath = relativePath
		return failure, true
	}
	if sourceChecksum != destinationChecksum {
		return failedVerification(ReasonChecksumMismatch, fmt.Sprintf(checksumMismatchTemplateConstant, relativePath), relativePath), true
	}
	return VerificationResult{}, false
}

func failedVerification(reason VerificationReason, message string, relativePath string) VerificationResult {
	return VerificationResult{Reason: reason, Message: message, RelativePath: relativePath}
}

func unreadableVerification(subject string, cause error) VerificationResult {
	return failedVerification(ReasonUnreadable, fmt.Sprintf(unreadableTemplateConstant, subject, cause), "")
}
