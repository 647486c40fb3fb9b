package migrate

import (
	"strings"
)

// CommandConfiguration captures persisted configuration for the data directory commands.
type CommandConfiguration struct {
	KeepBackup       bool   `mapstructure:"keep_backup"`
	VerificationMode string `mapstructure:"verification"`
	SampleSize       int    `mapstructure:"sample_size"`
}

// DefaultCommandConfiguration returns baseline configuration values for data directory migration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		KeepBackup:       true,
		VerificationMode: string(VerificationModeSample),
		SampleSize:       DefaultSampleSize,
	}
}

// Sanitize normalizes the verification mode and replaces unusable values with defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	verificationMode, parseError := ParseVerificationMode(strings.TrimSpace(configuration.VerificationMode))
	if parseError != nil {
		verificationMode = VerificationModeSample
	}
	sanitized.VerificationMode = string(verificationMode)
	if sanitized.SampleSize <= 0 {
		sanitized.SampleSize = DefaultSampleSize
	}
	return sanitized
}
