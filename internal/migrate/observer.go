package migrate

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes the migration metric names when no namespace is given.
const DefaultMetricsNamespace = "memdoc"

const (
	metricsSubsystemConstant          = "migration"
	outcomeLabelConstant              = "outcome"
	reasonLabelConstant               = "reason"
	outcomeSucceededConstant          = "succeeded"
	outcomeSucceededWithWarnings      = "succeeded_with_warnings"
	metricRegistrationErrorTemplate   = "register migration metric: %w"
	metricCollectorMismatchTemplate   = "register migration metric: existing collector has type %T"
	migrationsTotalMetricNameConstant = "runs_total"
	migrationsTotalMetricHelpConstant = "Count of data directory migrations by outcome."
	bytesCopiedMetricNameConstant     = "copied_bytes_total"
	bytesCopiedMetricHelpConstant     = "Cumulative bytes copied by data directory migrations."
	durationMetricNameConstant        = "duration_seconds"
	durationMetricHelpConstant        = "Wall time of data directory migrations."
	verificationFailuresMetricName    = "verification_failures_total"
	verificationFailuresMetricHelp    = "Count of rejected copies by verification reason."
)

// Observer receives migration telemetry.
type Observer interface {
	RecordMigration(duration time.Duration, result MigrationResult, err error)
	RecordVerificationFailure(reason VerificationReason)
}

type nopObserver struct{}

func (nopObserver) RecordMigration(time.Duration, MigrationResult, error) {}

func (nopObserver) RecordVerificationFailure(VerificationReason) {}

// PrometheusObserver exports migration metrics to Prometheus.
type PrometheusObserver struct {
	migrations           *prometheus.CounterVec
	bytesCopied          prometheus.Counter
	duration             prometheus.Histogram
	verificationFailures *prometheus.CounterVec
}

// NewPrometheusObserver registers the migration metrics with registerer, reusing collectors
// that were registered earlier.
func NewPrometheusObserver(namespace string, registerer prometheus.Registerer) (*PrometheusObserver, error) {
	if len(namespace) == 0 {
		namespace = DefaultMetricsNamespace
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	migrations, migrationsError := registerCollector(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystemConstant,
		Name:      migrationsTotalMetricNameConstant,
		Help:      migrationsTotalMetricHelpConstant,
	}, []string{outcomeLabelConstant}))
	if migrationsError != nil {
		return nil, migrationsError
	}
	bytesCopied, bytesError := registerCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystemConstant,
		Name:      bytesCopiedMetricNameConstant,
		Help:      bytesCopiedMetricHelpConstant,
	}))
	if bytesError != nil {
		return nil, bytesError
	}
	duration, durationError := registerCollector(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystemConstant,
		Name:      durationMetricNameConstant,
		Help:      durationMetricHelpConstant,
		Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
	}))
	if durationError != nil {
		return nil, durationError
	}
	verificationFailures, verificationError := registerCollector(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: metricsSubsystemConstant,
		Name:      verificationFailuresMetricName,
		Help:      verificationFailuresMetricHelp,
	}, []string{reasonLabelConstant}))
	if verificationError != nil {
		return nil, verificationError
	}

	return &PrometheusObserver{
		migrations:           migrations,
		bytesCopied:          bytesCopied,
		duration:             duration,
		verificationFailures: verificationFailures,
	}, nil
}

func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	registrationError := registerer.Register(collector)
	if registrationError == nil {
		return collector, nil
	}
	var alreadyRegistered prometheus.AlreadyRegisteredError
	if !errors.As(registrationError, &alreadyRegistered) {
		return collector, fmt.Errorf(metricRegistrationErrorTemplate, registrationError)
	}
	existing, matches := alreadyRegistered.ExistingCollector.(C)
	if !matches {
		return collector, fmt.Errorf(metricCollectorMismatchTemplate, alreadyRegistered.ExistingCollector)
	}
	return existing, nil
}

// RecordMigration counts the outcome and, on success, the copied bytes and duration.
func (observer *PrometheusObserver) RecordMigration(duration time.Duration, result MigrationResult, err error) {
	if observer == nil {
		return
	}
	var migrationError *MigrationError
	if errors.As(err, &migrationError) {
		observer.migrations.WithLabelValues(string(migrationError.Kind)).Inc()
		return
	}
	outcome := outcomeSucceededConstant
	if len(result.Warnings) > 0 {
		outcome = outcomeSucceededWithWarnings
	}
	observer.migrations.WithLabelValues(outcome).Inc()
	observer.bytesCopied.Add(float64(result.Statistics.BytesCopied))
	observer.duration.Observe(duration.Seconds())
}

// RecordVerificationFailure counts a rejected copy.
func (observer *PrometheusObserver) RecordVerificationFailure(reason VerificationReason) {
	if observer == nil {
		return
	}
	observer.verificationFailures.WithLabelValues(string(reason)).Inc()
}
