package server

import "strings"

const defaultAddressConstant = "127.0.0.1:5000"

// CommandConfiguration captures persisted configuration for the serve command.
type CommandConfiguration struct {
	Address string `mapstructure:"address"`
}

// DefaultCommandConfiguration returns baseline configuration values for the serve command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{Address: defaultAddressConstant}
}

// Sanitize trims the address and restores the default when it is blank.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Address = strings.TrimSpace(configuration.Address)
	if len(sanitized.Address) == 0 {
		sanitized.Address = defaultAddressConstant
	}
	return sanitized
}
