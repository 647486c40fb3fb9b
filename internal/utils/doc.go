// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that
// integrate Viper, environment variables, and zap logging for the memdoc CLI,
// plus the accessors used to thread command metadata through contexts.
package utils
