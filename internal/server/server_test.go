package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/temirov/memdoc/internal/migrate"
	"github.com/temirov/memdoc/internal/settings"
)

const (
	testMigrationIdentifierConstant = "migration-0042"
	jsonContentTypeConstant         = "application/json"
)

var testServerMoment = time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)

type plentifulVolumeInspector struct{}

func (plentifulVolumeInspector) AvailableBytes(string) (uint64, error) {
	return uint64(1) << 40, nil
}

func (plentifulVolumeInspector) VolumeIdentity(string) (string, error) {
	return "volume", nil
}

type serverFixture struct {
	root     string
	source   string
	store    *settings.Store
	registry *prometheus.Registry
	server   *Server
}

func serverTestTree() map[string]string {
	return map[string]string{
		"memoir.json":             `{"title":"Harbour Lights","author":"M. Reed","chapters":[{"id":"c1","file":"ch001-intro.md","order":1}]}`,
		"chapters/ch001-intro.md": "---\ntitle: Intro\n---\nIt began at the harbour.\n",
		"images/cover.jpg":        strings.Repeat("\x01", 2048),
	}
}

func writeServerTree(testInstance *testing.T, root string, files map[string]string) {
	testInstance.Helper()
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
		require.NoError(testInstance, os.WriteFile(absolutePath, []byte(content), 0o644))
	}
}

func treeSize(files map[string]string) int64 {
	var total int64
	for _, content := range files {
		total += int64(len(content))
	}
	return total
}

func newServerFixture(testInstance *testing.T, defaults MigrationDefaults) serverFixture {
	testInstance.Helper()
	gin.SetMode(gin.TestMode)

	root, evaluationError := filepath.EvalSymlinks(testInstance.TempDir())
	require.NoError(testInstance, evaluationError)
	source := filepath.Join(root, "data")
	writeServerTree(testInstance, source, serverTestTree())

	store := settings.NewStore(filepath.Join(root, "settings", "config.json"), settings.StoreDependencies{
		WorkingDirectory:  func() (string, error) { return root, nil },
		LookupEnvironment: func(string) (string, bool) { return "", false },
	})

	registry := prometheus.NewRegistry()
	observer, observerError := migrate.NewPrometheusObserver(migrate.DefaultMetricsNamespace, registry)
	require.NoError(testInstance, observerError)

	server, serverError := New(Dependencies{
		SettingsStore: store,
		Migrator: migrate.NewMigrator(migrate.MigratorDependencies{
			VolumeInspector:     plentifulVolumeInspector{},
			Observer:            observer,
			Clock:               func() time.Time { return testServerMoment },
			IdentifierGenerator: func() string { return testMigrationIdentifierConstant },
		}),
		Gatherer:          registry,
		MigrationDefaults: defaults,
	})
	require.NoError(testInstance, serverError)

	return serverFixture{root: root, source: source, store: store, registry: registry, server: server}
}

func (fixture serverFixture) request(testInstance *testing.T, method string, path string, body string) *httptest.ResponseRecorder {
	testInstance.Helper()
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, bodyReader)
	if len(body) > 0 {
		request.Header.Set("Content-Type", jsonContentTypeConstant)
	}
	recorder := httptest.NewRecorder()
	fixture.server.Handler().ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](testInstance *testing.T, recorder *httptest.ResponseRecorder) T {
	testInstance.Helper()
	var decoded T
	require.NoError(testInstance, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func TestNewRequiresSettingsStore(testInstance *testing.T) {
	_, serverError := New(Dependencies{})
	require.ErrorIs(testInstance, serverError, ErrSettingsStoreMissing)
}

func TestDataDirectoryEndpoint(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{})

	recorder := fixture.request(testInstance, http.MethodGet, "/api/settings/data-directory", "")
	require.Equal(testInstance, http.StatusOK, recorder.Code)

	response := decodeBody[dataDirectoryResponse](testInstance, recorder)
	require.Equal(testInstance, fixture.source, response.DataDirectory)
	require.NotNil(testInstance, response.Summary)
	require.Equal(testInstance, "Harbour Lights", response.Summary.Title)
	require.Equal(testInstance, 3, response.Summary.FileCount)
	require.Len(testInstance, response.Summary.Chapters, 1)
	require.Equal(testInstance, "Intro", response.Summary.Chapters[0].Title)
}

func TestDataDirectoryEndpointReportsUnreadableDirectory(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{})
	require.NoError(testInstance, os.RemoveAll(fixture.source))

	recorder := fixture.request(testInstance, http.MethodGet, "/api/settings/data-directory", "")
	require.Equal(testInstance, http.StatusOK, recorder.Code)

	response := decodeBody[dataDirectoryResponse](testInstance, recorder)
	require.Nil(testInstance, response.Summary)
	require.NotEmpty(testInstance, response.InspectError)
}

func TestValidatePathEndpoint(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{})
	freshPath := filepath.Join(fixture.root, "fresh")

	testCases := []struct {
		name            string
		body            string
		contentType     string
		expectedStatus  int
		expectedValid   bool
		expectedMessage string
	}{
		{
			name:            "fresh_directory",
			body:            fmt.Sprintf(`{"path":%q}`, freshPath),
			expectedStatus:  http.StatusOK,
			expectedValid:   true,
			expectedMessage: "Path is valid and writable (directory will be created)",
		},
		{
			name:            "current_directory",
			body:            fmt.Sprintf(`{"path":%q}`, fixture.source),
			expectedStatus:  http.StatusOK,
			expectedMessage: "This is already your current data directory",
		},
		{
			name:           "malformed_body",
			body:           `{"path":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "wrong_content_type",
			body:           `path=/tmp`,
			contentType:    "application/x-www-form-urlencoded",
			expectedStatus: http.StatusUnsupportedMediaType,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/api/settings/validate-path", strings.NewReader(testCase.body))
			contentType := jsonContentTypeConstant
			if len(testCase.contentType) > 0 {
				contentType = testCase.contentType
			}
			request.Header.Set("Content-Type", contentType)
			recorder := httptest.NewRecorder()
			fixture.server.Handler().ServeHTTP(recorder, request)

			require.Equal(subTest, testCase.expectedStatus, recorder.Code)
			if testCase.expectedStatus != http.StatusOK {
				return
			}
			response := decodeBody[validatePathResponse](subTest, recorder)
			require.Equal(subTest, testCase.expectedValid, response.Valid)
			require.Equal(subTest, testCase.expectedMessage, response.Message)
		})
	}

	_, statError := os.Stat(freshPath)
	require.True(testInstance, os.IsNotExist(statError))
}

func TestEstimateEndpoint(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{})

	recorder := fixture.request(testInstance, http.MethodPost, "/api/settings/estimate", fmt.Sprintf(`{"destination":%q}`, filepath.Join(fixture.root, "moved")))
	require.Equal(testInstance, http.StatusOK, recorder.Code)

	response := decodeBody[estimateResponse](testInstance, recorder)
	require.Equal(testInstance, treeSize(serverTestTree()), response.TotalBytes)
	require.Equal(testInstance, 3, response.FileCount)
	require.True(testInstance, response.SameVolume)
	require.Equal(testInstance, float64(1), response.Seconds)
}

func TestEstimateEndpointFailures(testInstance *testing.T) {
	testCases := []struct {
		name           string
		body           string
		removeSource   bool
		expectedStatus int
		expectedKind   migrate.FailureKind
	}{
		{name: "missing_destination", body: `{}`, expectedStatus: http.StatusBadRequest},
		{name: "missing_source", body: `{"destination":"/tmp/elsewhere"}`, removeSource: true, expectedStatus: http.StatusBadRequest, expectedKind: migrate.FailureSourceNotFound},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			fixture := newServerFixture(subTest, MigrationDefaults{})
			if testCase.removeSource {
				require.NoError(subTest, os.RemoveAll(fixture.source))
			}

			recorder := fixture.request(subTest, http.MethodPost, "/api/settings/estimate", testCase.body)
			require.Equal(subTest, testCase.expectedStatus, recorder.Code)
			response := decodeBody[errorResponse](subTest, recorder)
			require.NotEmpty(subTest, response.Error)
			require.Equal(subTest, testCase.expectedKind, response.Kind)
		})
	}
}

func TestMigrateEndpointMovesDataDirectory(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{KeepBackup: true})
	destination := filepath.Join(fixture.root, "moved")

	recorder := fixture.request(testInstance, http.MethodPost, "/api/settings/migrate", fmt.Sprintf(`{"destination":%q,"verification":"full"}`, destination))
	require.Equal(testInstance, http.StatusOK, recorder.Code)

	response := decodeBody[migrateResponse](testInstance, recorder)
	require.Equal(testInstance, testMigrationIdentifierConstant, response.ID)
	require.Equal(testInstance, destination, response.DataDirectory)
	require.Equal(testInstance, 3, response.FilesCopied)
	require.Equal(testInstance, treeSize(serverTestTree()), response.BytesCopied)
	require.Equal(testInstance, fixture.source+".backup.20260402_080000", response.BackupLocation)
	require.Empty(testInstance, response.Warnings)

	require.Equal(testInstance, destination, fixture.server.DataDirectory())
	persisted, loadError := fixture.store.Load()
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, destination, persisted.DataDirectory)
	require.Equal(testInstance, testMigrationIdentifierConstant, persisted.LastMigration.ID)

	directoryRecorder := fixture.request(testInstance, http.MethodGet, "/api/settings/data-directory", "")
	require.Equal(testInstance, destination, decodeBody[dataDirectoryResponse](testInstance, directoryRecorder).DataDirectory)

	progressRecorder := fixture.request(testInstance, http.MethodGet, "/api/settings/migrate/progress", "")
	require.Equal(testInstance, http.StatusOK, progressRecorder.Code)
	require.Equal(testInstance, ProgressSnapshot{
		InProgress:  false,
		BytesCopied: treeSize(serverTestTree()),
		TotalBytes:  treeSize(serverTestTree()),
	}, decodeBody[ProgressSnapshot](testInstance, progressRecorder))

	metricsRecorder := fixture.request(testInstance, http.MethodGet, "/metrics", "")
	require.Equal(testInstance, http.StatusOK, metricsRecorder.Code)
	require.Contains(testInstance, metricsRecorder.Body.String(), `memdoc_migration_runs_total{outcome="succeeded"} 1`)
}

func TestMigrateEndpointDeletesSourceWhenBackupDeclined(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{KeepBackup: true})
	destination := filepath.Join(fixture.root, "moved")

	recorder := fixture.request(testInstance, http.MethodPost, "/api/settings/migrate", fmt.Sprintf(`{"destination":%q,"keep_backup":false}`, destination))
	require.Equal(testInstance, http.StatusOK, recorder.Code)
	require.Empty(testInstance, decodeBody[migrateResponse](testInstance, recorder).BackupLocation)

	_, statError := os.Stat(fixture.source)
	require.True(testInstance, os.IsNotExist(statError))
}

func TestMigrateEndpointRejections(testInstance *testing.T) {
	testCases := []struct {
		name           string
		prepare        func(testInstance *testing.T, fixture serverFixture) string
		expectedStatus int
		expectedKind   migrate.FailureKind
	}{
		{
			name: "missing_destination",
			prepare: func(*testing.T, serverFixture) string {
				return `{"destination":"  "}`
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown_verification_mode",
			prepare: func(_ *testing.T, fixture serverFixture) string {
				return fmt.Sprintf(`{"destination":%q,"verification":"thorough"}`, filepath.Join(fixture.root, "moved"))
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "destination_not_empty",
			prepare: func(testInstance *testing.T, fixture serverFixture) string {
				occupied := filepath.Join(fixture.root, "occupied")
				writeServerTree(testInstance, occupied, map[string]string{"note.txt": "keep"})
				return fmt.Sprintf(`{"destination":%q}`, occupied)
			},
			expectedStatus: http.StatusBadRequest,
			expectedKind:   migrate.FailureDestinationNotEmpty,
		},
		{
			name: "destination_inside_source",
			prepare: func(_ *testing.T, fixture serverFixture) string {
				return fmt.Sprintf(`{"destination":%q}`, filepath.Join(fixture.source, "nested"))
			},
			expectedStatus: http.StatusBadRequest,
			expectedKind:   migrate.FailureDestinationInsideSource,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			fixture := newServerFixture(subTest, MigrationDefaults{KeepBackup: true})

			recorder := fixture.request(subTest, http.MethodPost, "/api/settings/migrate", testCase.prepare(subTest, fixture))
			require.Equal(subTest, testCase.expectedStatus, recorder.Code)
			response := decodeBody[errorResponse](subTest, recorder)
			require.Equal(subTest, testCase.expectedKind, response.Kind)
			require.Equal(subTest, fixture.source, fixture.server.DataDirectory())
		})
	}
}

func TestMigrateEndpointRejectsConcurrentMigration(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{})
	fixture.server.migrationMutex.Lock()
	defer fixture.server.migrationMutex.Unlock()

	recorder := fixture.request(testInstance, http.MethodPost, "/api/settings/migrate", fmt.Sprintf(`{"destination":%q}`, filepath.Join(fixture.root, "moved")))
	require.Equal(testInstance, http.StatusConflict, recorder.Code)
	require.Equal(testInstance, migrationInProgressMessageConstant, decodeBody[errorResponse](testInstance, recorder).Error)
}

func TestRespondWithMigrationErrorStatus(testInstance *testing.T) {
	gin.SetMode(gin.TestMode)
	testCases := []struct {
		name           string
		failure        error
		expectedStatus int
	}{
		{name: "validation", failure: &migrate.MigrationError{Kind: migrate.FailureInsufficientDiskSpace, RequiredBytes: 11, AvailableBytes: 10}, expectedStatus: http.StatusBadRequest},
		{name: "filesystem_unavailable", failure: &migrate.MigrationError{Kind: migrate.FailureFilesystemUnavailable}, expectedStatus: http.StatusInternalServerError},
		{name: "copy_failed", failure: &migrate.MigrationError{Kind: migrate.FailureCopyFailed, RelativePath: "images/a.jpg"}, expectedStatus: http.StatusInternalServerError},
		{name: "verification_failed", failure: &migrate.MigrationError{Kind: migrate.FailureVerificationFailed, VerificationReason: migrate.ReasonChecksumMismatch}, expectedStatus: http.StatusInternalServerError},
		{name: "untyped", failure: io.ErrUnexpectedEOF, expectedStatus: http.StatusInternalServerError},
	}

	server := &Server{}
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			recorder := httptest.NewRecorder()
			requestContext, _ := gin.CreateTestContext(recorder)
			server.respondWithMigrationError(requestContext, testCase.failure)
			require.Equal(subTest, testCase.expectedStatus, recorder.Code)
		})
	}
}

func TestServeStopsWhenContextIsCancelled(testInstance *testing.T) {
	fixture := newServerFixture(testInstance, MigrationDefaults{})
	listener, listenError := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(testInstance, listenError)

	executionContext, cancel := context.WithCancel(context.Background())
	serveResult := make(chan error, 1)
	go func() {
		serveResult <- fixture.server.Serve(executionContext, listener)
	}()

	response, requestError := http.Get("http://" + listener.Addr().String() + "/api/settings/migrate/progress")
	require.NoError(testInstance, requestError)
	require.NoError(testInstance, response.Body.Close())
	require.Equal(testInstance, http.StatusOK, response.StatusCode)

	cancel()
	select {
	case serveError := <-serveResult:
		require.NoError(testInstance, serveError)
	case <-time.After(10 * time.Second):
		testInstance.Fatal("server did not stop")
	}
}

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	require.Equal(testInstance, "127.0.0.1:5000", CommandConfiguration{Address: "  "}.Sanitize().Address)
	require.Equal(testInstance, "0.0.0.0:8080", CommandConfiguration{Address: " 0.0.0.0:8080 "}.Sanitize().Address)
}
