package migrate_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/temirov/memdoc/internal/migrate"
)

func TestPrometheusObserverRecordsOutcomes(testInstance *testing.T) {
	registry := prometheus.NewRegistry()
	metricsObserver, observerError := migrate.NewPrometheusObserver("", registry)
	require.NoError(testInstance, observerError)

	again, againError := migrate.NewPrometheusObserver("", registry)
	require.NoError(testInstance, againError)
	require.NotNil(testInstance, again)

	root := realTemporaryDirectory(testInstance)
	source := filepath.Join(root, "data")
	writeTree(testInstance, source, memoirTree())
	migrator := migrate.NewMigrator(migrate.MigratorDependencies{
		VolumeInspector: &stubVolumeInspector{available: plentyOfSpaceConstant},
		Observer:        metricsObserver,
	})

	_, migrationError := migrator.Migrate(migrate.MigrationOptions{Source: source, Destination: filepath.Join(root, "moved")})
	require.NoError(testInstance, migrationError)
	_, rejectedError := migrator.Migrate(migrate.MigrationOptions{Source: source, Destination: filepath.Join(root, "other")})
	require.Error(testInstance, rejectedError)
	metricsObserver.RecordVerificationFailure(migrate.ReasonChecksumMismatch)

	expected := `
# HELP memdoc_migration_runs_total Count of data directory migrations by outcome.
# TYPE memdoc_migration_runs_total counter
memdoc_migration_runs_total{outcome="source_not_found"} 1
memdoc_migration_runs_total{outcome="succeeded"} 1
# HELP memdoc_migration_copied_bytes_total Cumulative bytes copied by data directory migrations.
# TYPE memdoc_migration_copied_bytes_total counter
memdoc_migration_copied_bytes_total 5000
# HELP memdoc_migration_verification_failures_total Count of rejected copies by verification reason.
# TYPE memdoc_migration_verification_failures_total counter
memdoc_migration_verification_failures_total{reason="checksum_mismatch"} 1
`
	require.NoError(testInstance, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"memdoc_migration_runs_total", "memdoc_migration_copied_bytes_total", "memdoc_migration_verification_failures_total"))
	durationSeries, countError := testutil.GatherAndCount(registry, "memdoc_migration_duration_seconds")
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 1, durationSeries)
}
