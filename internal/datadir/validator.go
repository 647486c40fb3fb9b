package datadir

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	pathutils "github.com/temirov/memdoc/internal/utils/path"
)

const (
	writeProbeFileNameConstant             = ".memdoc_write_test"
	validDirectoryMessageConstant          = "Path is valid and writable"
	validCreatedDirectoryMessageConstant   = "Path is valid and writable (directory created)"
	validPendingDirectoryMessageConstant   = "Path is valid and writable (directory will be created)"
	notDirectoryMessageConstant            = "Path exists but is not a directory"
	currentDirectoryMessageConstant        = "This is already your current data directory"
	notWritableDirectoryMessageConstant    = "Directory exists but is not writable (permission denied)"
	invalidPathTemplateConstant            = "Invalid path: %v"
	notEmptyDirectoryTemplateConstant      = "Directory already exists and contains %d items. Please choose an empty folder or use a different name."
	cannotWriteDirectoryTemplateConstant   = "Cannot write to directory: %v"
	missingParentTemplateConstant          = "Parent directory does not exist: %s"
	parentNotDirectoryTemplateConstant     = "Parent path is not a directory: %s"
	createPermissionDeniedTemplateConstant = "Cannot create directory (permission denied): %s"
	cannotCreateDirectoryTemplateConstant  = "Cannot create directory: %v"
	createdDirectoryPermissionsConstant    = fs.FileMode(0o755)
	writeProbePermissionsConstant          = fs.FileMode(0o600)
)

// ValidationOptions tunes PathValidator.Validate.
type ValidationOptions struct {
	// CurrentDataDirectory, when set, is rejected as a candidate and enables the emptiness check.
	CurrentDataDirectory string
	// CreateMissing creates a missing leaf directory instead of probing its parent.
	CreateMissing bool
}

// ValidationResult reports whether a candidate data directory location is usable.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	Message      string `json:"message"`
	ResolvedPath string `json:"resolved_path,omitempty"`
	Created      bool   `json:"created,omitempty"`
}

// PathValidator checks candidate data directory locations.
type PathValidator struct {
	fileSystem   afero.Fs
	pathResolver *pathutils.PathResolver
}

// NewPathValidator constructs a PathValidator; nil collaborators fall back to the operating system.
func NewPathValidator(fileSystem afero.Fs, pathResolver *pathutils.PathResolver) *PathValidator {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if pathResolver == nil {
		pathResolver = pathutils.NewPathResolver()
	}
	return &PathValidator{fileSystem: fileSystem, pathResolver: pathResolver}
}

// Validate inspects candidate and reports whether it can become the data directory.
func (validator *PathValidator) Validate(candidate string, options ValidationOptions) ValidationResult {
	resolvedPath, resolveError := validator.pathResolver.Resolve(candidate)
	if resolveError != nil {
		return ValidationResult{Message: fmt.Sprintf(invalidPathTemplateConstant, resolveError)}
	}

	info, statError := validator.fileSystem.Stat(resolvedPath)
	switch {
	case statError == nil:
		return validator.validateExisting(resolvedPath, info, options)
	case errors.Is(statError, fs.ErrPermission):
		return ValidationResult{ResolvedPath: resolvedPath, Message: fmt.Sprintf(invalidPathTemplateConstant, statError)}
	default:
		return validator.validateMissing(resolvedPath, options)
	}
}

func (validator *PathValidator) validateExisting(resolvedPath string, info fs.FileInfo, options ValidationOptions) ValidationResult {
	result := ValidationResult{ResolvedPath: resolvedPath}
	if !info.IsDir() {
		result.Message = notDirectoryMessageConstant
		return result
	}

	if len(options.CurrentDataDirectory) > 0 {
		currentPath, currentError := validator.pathResolver.Resolve(options.CurrentDataDirectory)
		if currentError == nil && currentPath == resolvedPath {
			result.Message = currentDirectoryMessageConstant
			return result
		}

		entries, readError := afero.ReadDir(validator.fileSystem, resolvedPath)
		if readError == nil && len(entries) > 0 {
			result.Message = fmt.Sprintf(notEmptyDirectoryTemplateConstant, len(entries))
			return result
		}
	}

	if probeError := validator.probeWrite(resolvedPath); probeError != nil {
		if errors.Is(probeError, fs.ErrPermission) {
			result.Message = notWritableDirectoryMessageConstant
			return result
		}
		result.Message = fmt.Sprintf(cannotWriteDirectoryTemplateConstant, probeError)
		return result
	}

	result.Valid = true
	result.Message = validDirectoryMessageConstant
	return result
}

func (validator *PathValidator) validateMissing(resolvedPath string, options ValidationOptions) ValidationResult {
	result := ValidationResult{ResolvedPath: resolvedPath}
	parentPath := filepath.Dir(resolvedPath)
	parentInfo, parentError := validator.fileSystem.Stat(parentPath)
	if parentError != nil {
		result.Message = fmt.Sprintf(missingParentTemplateConstant, parentPath)
		return result
	}
	if !parentInfo.IsDir() {
		result.Message = fmt.Sprintf(parentNotDirectoryTemplateConstant, parentPath)
		return result
	}

	probeDirectory := parentPath
	if options.CreateMissing {
		if mkdirError := validator.fileSystem.MkdirAll(resolvedPath, createdDirectoryPermissionsConstant); mkdirError != nil {
			return validator.creationFailure(result, mkdirError)
		}
		result.Created = true
		probeDirectory = resolvedPath
	}

	if probeError := validator.probeWrite(probeDirectory); probeError != nil {
		return validator.creationFailure(result, probeError)
	}

	result.Valid = true
	result.Message = validPendingDirectoryMessageConstant
	if result.Created {
		result.Message = validCreatedDirectoryMessageConstant
	}
	return result
}

func (validator *PathValidator) creationFailure(result ValidationResult, cause error) ValidationResult {
	if errors.Is(cause, fs.ErrPermission) {
		result.Message = fmt.Sprintf(createPermissionDeniedTemplateConstant, result.ResolvedPath)
		return result
	}
	result.Message = fmt.Sprintf(cannotCreateDirectoryTemplateConstant, cause)
	return result
}

func (validator *PathValidator) probeWrite(directory string) error {
	probePath := filepath.Join(directory, writeProbeFileNameConstant)
	if writeError := afero.WriteFile(validator.fileSystem, probePath, nil, writeProbePermissionsConstant); writeError != nil {
		return writeError
	}
	return validator.fileSystem.Remove(probePath)
}
