package pathutils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	emptyPathMessageConstant     = "path must not be empty"
	parentDirectoryTokenConstant = ".."
)

// ErrEmptyPath indicates that a blank path was supplied for resolution.
var ErrEmptyPath = errors.New(emptyPathMessageConstant)

// SymlinkEvaluator resolves symbolic links for an existing path.
type SymlinkEvaluator func(path string) (string, error)

// PathResolver turns user supplied directory paths into absolute, symlink free paths.
type PathResolver struct {
	homeExpander     *HomeExpander
	symlinkEvaluator SymlinkEvaluator
}

// NewPathResolver constructs a PathResolver backed by the operating system.
func NewPathResolver() *PathResolver {
	return NewPathResolverWithDependencies(nil, nil)
}

// NewPathResolverWithDependencies constructs a PathResolver with custom collaborators.
func NewPathResolverWithDependencies(homeExpander *HomeExpander, symlinkEvaluator SymlinkEvaluator) *PathResolver {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	if symlinkEvaluator == nil {
		symlinkEvaluator = filepath.EvalSymlinks
	}
	return &PathResolver{homeExpander: homeExpander, symlinkEvaluator: symlinkEvaluator}
}

// Resolve trims, expands, and absolutizes the candidate, then resolves symlinks on its
// longest existing prefix so that paths which do not exist yet still compare reliably.
func (resolver *PathResolver) Resolve(candidatePath string) (string, error) {
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return "", ErrEmptyPath
	}

	absolutePath, absoluteError := filepath.Abs(resolver.homeExpander.Expand(trimmedPath))
	if absoluteError != nil {
		return "", absoluteError
	}

	currentPath := filepath.Clean(absolutePath)
	var missingSegments []string
	for {
		resolvedPath, evaluationError := resolver.symlinkEvaluator(currentPath)
		if evaluationError == nil {
			return joinSegments(resolvedPath, missingSegments), nil
		}
		if !errors.Is(evaluationError, fs.ErrNotExist) {
			return filepath.Clean(absolutePath), nil
		}

		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return filepath.Clean(absolutePath), nil
		}
		missingSegments = append(missingSegments, filepath.Base(currentPath))
		currentPath = parentPath
	}
}

func joinSegments(basePath string, reversedSegments []string) string {
	joinedPath := basePath
	for segmentIndex := len(reversedSegments) - 1; segmentIndex >= 0; segmentIndex-- {
		joinedPath = filepath.Join(joinedPath, reversedSegments[segmentIndex])
	}
	return joinedPath
}

// IsWithin reports whether candidatePath is strictly nested inside parentPath.
func IsWithin(parentPath string, candidatePath string) bool {
	relativePath, relativeError := filepath.Rel(parentPath, candidatePath)
	if relativeError != nil {
		return false
	}
	if relativePath == "." || relativePath == parentDirectoryTokenConstant {
		return false
	}
	return !strings.HasPrefix(relativePath, parentDirectoryTokenConstant+string(filepath.Separator))
}

// NearestExistingAncestor returns the path itself when it exists, otherwise the closest existing parent.
func NearestExistingAncestor(candidatePath string) (string, error) {
	currentPath := filepath.Clean(candidatePath)
	for {
		_, statError := os.Stat(currentPath)
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
