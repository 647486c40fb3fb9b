package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/memdoc/internal/datadir"
	"github.com/temirov/memdoc/internal/migrate"
	"github.com/temirov/memdoc/internal/settings"
)

const (
	settingsRouteGroupConstant        = "/api/settings"
	dataDirectoryRouteConstant        = "/data-directory"
	validatePathRouteConstant         = "/validate-path"
	estimateRouteConstant             = "/estimate"
	migrateRouteConstant              = "/migrate"
	migrateProgressRouteConstant      = "/migrate/progress"
	metricsRouteConstant              = "/metrics"
	readHeaderTimeoutConstant         = 10 * time.Second
	shutdownTimeoutConstant           = 15 * time.Second
	settingsStoreMissingMessage       = "settings store is required"
	logMessageServerListeningConstant = "HTTP server listening"
	logMessageServerStoppingConstant  = "HTTP server shutting down"
	logFieldAddressConstant           = "address"
)

// ErrSettingsStoreMissing indicates that New was called without a settings store.
var ErrSettingsStoreMissing = errors.New(settingsStoreMissingMessage)

// MigrationDefaults supplies the migration options a request does not specify.
type MigrationDefaults struct {
	KeepBackup       bool
	VerificationMode migrate.VerificationMode
	SampleSize       int
}

// Dependencies describes the collaborators used by Server. Only SettingsStore is required.
type Dependencies struct {
	Logger            *zap.Logger
	SettingsStore     *settings.Store
	Migrator          *migrate.Migrator
	Validator         *datadir.PathValidator
	Inspector         *datadir.Inspector
	Gatherer          prometheus.Gatherer
	MigrationDefaults MigrationDefaults
}

// Server serves the data directory settings API.
type Server struct {
	logger            *zap.Logger
	settingsStore     *settings.Store
	migrator          *migrate.Migrator
	validator         *datadir.PathValidator
	inspector         *datadir.Inspector
	migrationDefaults MigrationDefaults
	engine            *gin.Engine
	progress          progressTracker
	migrationMutex    sync.Mutex
	directoryMutex    sync.RWMutex
	dataDirectory     string
}

// New constructs a Server and its routes. The data directory is read from the settings store once
// and afterwards follows the migrations the server performs.
func New(dependencies Dependencies) (*Server, error) {
	if dependencies.SettingsStore == nil {
		return nil, ErrSettingsStoreMissing
	}
	dataDirectory, dataDirectoryError := dependencies.SettingsStore.DataDirectory()
	if dataDirectoryError != nil {
		return nil, dataDirectoryError
	}

	server := &Server{
		logger:            dependencies.Logger,
		settingsStore:     dependencies.SettingsStore,
		migrator:          dependencies.Migrator,
		validator:         dependencies.Validator,
		inspector:         dependencies.Inspector,
		migrationDefaults: dependencies.MigrationDefaults,
		dataDirectory:     dataDirectory,
	}
	if server.logger == nil {
		server.logger = zap.NewNop()
	}
	if server.migrator == nil {
		server.migrator = migrate.NewMigrator(migrate.MigratorDependencies{Logger: server.logger})
	}
	if server.validator == nil {
		server.validator = datadir.NewPathValidator(nil, nil)
	}
	if server.inspector == nil {
		server.inspector = datadir.NewInspector(nil)
	}
	if len(server.migrationDefaults.VerificationMode) == 0 {
		server.migrationDefaults.VerificationMode = migrate.VerificationModeSample
	}

	gatherer := dependencies.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	server.engine = server.buildEngine(gatherer)
	return server, nil
}

func (server *Server) buildEngine(gatherer prometheus.Gatherer) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(server.logger))

	settingsGroup := engine.Group(settingsRouteGroupConstant)
	settingsGroup.Use(requireJSON())
	{
		settingsGroup.GET(dataDirectoryRouteConstant, server.handleDataDirectory)
		settingsGroup.POST(validatePathRouteConstant, server.handleValidatePath)
		settingsGroup.POST(estimateRouteConstant, server.handleEstimate)
		settingsGroup.POST(migrateRouteConstant, server.handleMigrate)
		settingsGroup.GET(migrateProgressRouteConstant, server.handleMigrateProgress)
	}

	engine.GET(metricsRouteConstant, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true})))
	return engine
}

// Handler exposes the HTTP handler, mainly for tests.
func (server *Server) Handler() http.Handler {
	return server.engine
}

// DataDirectory reports the data directory the server currently serves.
func (server *Server) DataDirectory() string {
	server.directoryMutex.RLock()
	defer server.directoryMutex.RUnlock()
	return server.dataDirectory
}

func (server *Server) setDataDirectory(dataDirectory string) {
	server.directoryMutex.Lock()
	defer server.directoryMutex.Unlock()
	server.dataDirectory = dataDirectory
}

// ListenAndServe listens on address and serves until executionContext is cancelled.
func (server *Server) ListenAndServe(executionContext context.Context, address string) error {
	listener, listenError := net.Listen("tcp", address)
	if listenError != nil {
		return listenError
	}
	return server.Serve(executionContext, listener)
}

// Serve serves on listener until executionContext is cancelled, then shuts down gracefully.
func (server *Server) Serve(executionContext context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           server.engine,
		ReadHeaderTimeout: readHeaderTimeoutConstant,
	}

	group, groupContext := errgroup.WithContext(executionContext)
	group.Go(func() error {
		server.logger.Info(logMessageServerListeningConstant, zap.String(logFieldAddressConstant, listener.Addr().String()))
		if serveError := httpServer.Serve(listener); serveError != nil && !errors.Is(serveError, http.ErrServerClosed) {
			return serveError
		}
		return nil
	})
	group.Go(func() error {
		<-groupContext.Done()
		server.logger.Info(logMessageServerStoppingConstant, zap.String(logFieldAddressConstant, listener.Addr().String()))
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeoutConstant)
		defer cancel()
		return httpServer.Shutdown(shutdownContext)
	})
	return group.Wait()
}
