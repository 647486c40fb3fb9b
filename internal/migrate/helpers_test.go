package migrate_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/memdoc/internal/migrate"
)

const (
	testVolumeIdentityConstant = "volume-1"
	testMigrationIDConstant    = "migration-0001"
	plentyOfSpaceConstant      = uint64(1) << 40
)

var testMigrationMoment = time.Date(2026, time.March, 1, 10, 20, 30, 0, time.UTC)

type stubVolumeInspector struct {
	available      uint64
	availableError error
	identities     map[string]string
	queriedPaths   []string
}

func (inspector *stubVolumeInspector) AvailableBytes(path string) (uint64, error) {
	inspector.queriedPaths = append(inspector.queriedPaths, path)
	if inspector.availableError != nil {
		return 0, inspector.availableError
	}
	return inspector.available, nil
}

func (inspector *stubVolumeInspector) VolumeIdentity(path string) (string, error) {
	for prefix, identity := range inspector.identities {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return identity, nil
		}
	}
	return testVolumeIdentityConstant, nil
}

type allFilesSampler struct{}

func (allFilesSampler) Sample(candidates []string, _ int) []string {
	return append([]string(nil), candidates...)
}

// faultyFs injects failures into selected afero operations.
type faultyFs struct {
	afero.Fs
	renameError    error
	removeAllError error
	removeAllPaths map[string]bool
	openFileError  map[string]error
	corruptedPaths map[string]bool
}

func (fileSystem *faultyFs) Rename(oldName string, newName string) error {
	if fileSystem.renameError != nil {
		return fileSystem.renameError
	}
	return fileSystem.Fs.Rename(oldName, newName)
}

func (fileSystem *faultyFs) RemoveAll(path string) error {
	if fileSystem.removeAllError != nil && (fileSystem.removeAllPaths == nil || fileSystem.removeAllPaths[path]) {
		return fileSystem.removeAllError
	}
	return fileSystem.Fs.RemoveAll(path)
}

func (fileSystem *faultyFs) OpenFile(name string, flag int, permissions os.FileMode) (afero.File, error) {
	if failure, exists := fileSystem.openFileError[filepath.Base(name)]; exists && flag&os.O_CREATE != 0 {
		return nil, failure
	}
	file, openError := fileSystem.Fs.OpenFile(name, flag, permissions)
	if openError != nil {
		return nil, openError
	}
	if fileSystem.corruptedPaths[filepath.Base(name)] && flag&os.O_CREATE != 0 {
		return &corruptingFile{File: file}, nil
	}
	return file, nil
}

// corruptingFile flips the first byte it writes.
type corruptingFile struct {
	afero.File
	corrupted bool
}

func (file *corruptingFile) Write(content []byte) (int, error) {
	if file.corrupted || len(content) == 0 {
		return file.File.Write(content)
	}
	file.corrupted = true
	altered := append([]byte(nil), content...)
	altered[0] ^= 0xFF
	return file.File.Write(altered)
}

var errInjected = errors.New("injected failure")

func realTemporaryDirectory(testInstance *testing.T) string {
	testInstance.Helper()
	temporaryDirectory, evaluationError := filepath.EvalSymlinks(testInstance.TempDir())
	require.NoError(testInstance, evaluationError)
	return temporaryDirectory
}

func writeTree(testInstance *testing.T, root string, files map[string]string) {
	testInstance.Helper()
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
		require.NoError(testInstance, os.WriteFile(absolutePath, []byte(content), 0o644))
	}
}

func readTree(testInstance *testing.T, root string) map[string]string {
	testInstance.Helper()
	contents := map[string]string{}
	walkError := filepath.Walk(root, func(path string, info os.FileInfo, visitError error) error {
		if visitError != nil {
			return visitError
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		relativePath, relativeError := filepath.Rel(root, path)
		if relativeError != nil {
			return relativeError
		}
		content, readError := os.ReadFile(path)
		if readError != nil {
			return readError
		}
		contents[filepath.ToSlash(relativePath)] = string(content)
		return nil
	})
	require.NoError(testInstance, walkError)
	return contents
}

// memoirTree is three files totalling 5000 bytes.
func memoirTree() map[string]string {
	return map[string]string{
		"memoir.json":             `{"title":"T"}` + strings.Repeat(" ", 987),
		"chapters/ch001-intro.md": strings.Repeat("c", 1500),
		"images/cover.jpg":        strings.Repeat("\x01", 2500),
	}
}

func newTestMigrator(fileSystem afero.Fs, inspector migrate.VolumeInspector) *migrate.Migrator {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if inspector == nil {
		inspector = &stubVolumeInspector{available: plentyOfSpaceConstant}
	}
	return migrate.NewMigrator(migrate.MigratorDependencies{
		FileSystem:          fileSystem,
		VolumeInspector:     inspector,
		Sampler:             allFilesSampler{},
		Clock:               func() time.Time { return testMigrationMoment },
		IdentifierGenerator: func() string { return testMigrationIDConstant },
	})
}

func requireMigrationError(testInstance *testing.T, migrationError error, expectedKind migrate.FailureKind) *migrate.MigrationError {
	testInstance.Helper()
	require.Error(testInstance, migrationError)
	var typedError *migrate.MigrationError
	require.ErrorAs(testInstance, migrationError, &typedError)
	require.Equal(testInstance, expectedKind, typedError.Kind)
	return typedError
}

func requireMissing(testInstance *testing.T, path string) {
	testInstance.Helper()
	_, statError := os.Stat(path)
	require.True(testInstance, os.IsNotExist(statError), "expected %s to be absent", path)
}
