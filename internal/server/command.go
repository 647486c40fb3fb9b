package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/memdoc/internal/migrate"
	"github.com/temirov/memdoc/internal/settings"
)

const (
	commandUseConstant               = "serve"
	commandShortDescriptionConstant  = "Serve the data directory settings API"
	addressFlagNameConstant          = "address"
	addressFlagUsageConstant         = "Address to listen on (host:port)"
	serverCreationErrorTemplate      = "unable to construct server: %w"
	observerCreationErrorTemplate    = "unable to register migration metrics: %w"
	serveErrorTemplateConstant       = "server stopped: %w"
	listeningMessageTemplateConstant = "Serving %s on http://%s\n"
)

// CommandBuilder assembles the serve command.
type CommandBuilder struct {
	LoggerProvider                 func() *zap.Logger
	ConfigurationProvider          func() CommandConfiguration
	MigrationConfigurationProvider func() migrate.CommandConfiguration
	SettingsStoreProvider          func() *settings.Store
	// ContextDecorator, when set, replaces the signal-bound context used to stop the server.
	ContextDecorator func(parent context.Context) (context.Context, context.CancelFunc)
}

// Build constructs the serve command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	var address string

	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, address)
		},
	}

	command.Flags().StringVar(&address, addressFlagNameConstant, "", addressFlagUsageConstant)
	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, flagAddress string) error {
	configuration := builder.resolveConfiguration()
	if command.Flags().Changed(addressFlagNameConstant) && len(strings.TrimSpace(flagAddress)) > 0 {
		configuration.Address = strings.TrimSpace(flagAddress)
	}
	migrationConfiguration := builder.resolveMigrationConfiguration()
	logger := builder.resolveLogger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, observerError := migrate.NewPrometheusObserver(migrate.DefaultMetricsNamespace, registry)
	if observerError != nil {
		return fmt.Errorf(observerCreationErrorTemplate, observerError)
	}

	gin.SetMode(gin.ReleaseMode)
	store := builder.resolveSettingsStore(logger)
	server, serverError := New(Dependencies{
		Logger:        logger,
		SettingsStore: store,
		Migrator:      migrate.NewMigrator(migrate.MigratorDependencies{Logger: logger, Observer: observer}),
		Gatherer:      registry,
		MigrationDefaults: MigrationDefaults{
			KeepBackup:       migrationConfiguration.KeepBackup,
			VerificationMode: migrate.VerificationMode(migrationConfiguration.VerificationMode),
			SampleSize:       migrationConfiguration.SampleSize,
		},
	})
	if serverError != nil {
		return fmt.Errorf(serverCreationErrorTemplate, serverError)
	}

	executionContext, cancel := builder.decorateContext(command.Context())
	defer cancel()

	fmt.Fprintf(command.ErrOrStderr(), listeningMessageTemplateConstant, server.DataDirectory(), configuration.Address)
	if serveError := server.ListenAndServe(executionContext, configuration.Address); serveError != nil {
		return fmt.Errorf(serveErrorTemplateConstant, serveError)
	}
	return nil
}

func (builder *CommandBuilder) decorateContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if builder.ContextDecorator != nil {
		return builder.ContextDecorator(parent)
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider != nil {
		if logger := builder.LoggerProvider(); logger != nil {
			return logger
		}
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) resolveSettingsStore(logger *zap.Logger) *settings.Store {
	if builder.SettingsStoreProvider != nil {
		if store := builder.SettingsStoreProvider(); store != nil {
			return store
		}
	}
	return settings.NewStore(settings.DefaultPath, settings.StoreDependencies{Logger: logger})
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveMigrationConfiguration() migrate.CommandConfiguration {
	if builder.MigrationConfigurationProvider == nil {
		return migrate.DefaultCommandConfiguration()
	}
	return builder.MigrationConfigurationProvider().Sanitize()
}
