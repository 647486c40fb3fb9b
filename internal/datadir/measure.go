package datadir

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// TreeStatistics summarizes the regular files found beneath a directory.
type TreeStatistics struct {
	FileCount  int
	TotalBytes int64
}

// Measure counts regular files and their sizes beneath root. Symlinks are not followed and
// unreadable entries below root are skipped; only a failure to read root itself is returned.
func Measure(fileSystem afero.Fs, root string) (TreeStatistics, error) {
	statistics := TreeStatistics{}
	walkError := afero.Walk(fileSystem, root, func(path string, info os.FileInfo, visitError error) error {
		if visitError != nil {
			if path == root {
				return visitError
			}
			return nil
		}
		if info.Mode().IsRegular() {
			statistics.FileCount++
			statistics.TotalBytes += info.Size()
		}
		return nil
	})
	if walkError != nil {
		return TreeStatistics{}, walkError
	}
	return statistics, nil
}

// ListRegularFiles returns the root-relative paths of every regular file beneath root in lexical order.
func ListRegularFiles(fileSystem afero.Fs, root string) ([]string, error) {
	var relativePaths []string
	walkError := afero.Walk(fileSystem, root, func(path string, info os.FileInfo, visitError error) error {
		if visitError != nil {
			if path == root {
				return visitError
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		relativePath, relativeError := filepath.Rel(root, path)
		if relativeError != nil {
			return relativeError
		}
		relativePaths = append(relativePaths, relativePath)
		return nil
	})
	if walkError != nil {
		return nil, walkError
	}
	sort.Strings(relativePaths)
	return relativePaths, nil
}

// IsEmptyDirectory reports whether path is a directory without entries.
func IsEmptyDirectory(fileSystem afero.Fs, path string) (bool, error) {
	return afero.IsEmpty(fileSystem, path)
}
