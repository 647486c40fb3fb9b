package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	jsonZapEncodingStringConstant        = "json"
	consoleZapEncodingStringConstant     = "console"
	standardErrorOutputPathConstant      = "stderr"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
	timestampKeyConstant                 = "timestamp"
	consoleTimeLayoutConstant            = "15:04:05.000"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct {
	outputPaths []string
}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// NewLoggerFactory constructs a logger factory that writes to standard error.
func NewLoggerFactory() *LoggerFactory {
	return NewLoggerFactoryWithOutputPaths([]string{standardErrorOutputPathConstant})
}

// NewLoggerFactoryWithOutputPaths constructs a logger factory writing to the provided zap sinks.
func NewLoggerFactoryWithOutputPaths(outputPaths []string) *LoggerFactory {
	duplicatedOutputPaths := make([]string, 0, len(outputPaths))
	for _, outputPath := range outputPaths {
		trimmedOutputPath := strings.TrimSpace(outputPath)
		if len(trimmedOutputPath) == 0 {
			continue
		}
		duplicatedOutputPaths = append(duplicatedOutputPaths, trimmedOutputPath)
	}
	if len(duplicatedOutputPaths) == 0 {
		duplicatedOutputPaths = []string{standardErrorOutputPathConstant}
	}
	return &LoggerFactory{outputPaths: duplicatedOutputPaths}
}

// ParseLogLevel normalizes a textual level into a supported LogLevel.
func ParseLogLevel(candidate string) (LogLevel, error) {
	normalized := LogLevel(strings.ToLower(strings.TrimSpace(candidate)))
	if _, supported := logLevelMapping[normalized]; !supported {
		return "", fmt.Errorf(unsupportedLogLevelTemplateConstant, candidate)
	}
	return normalized, nil
}

// ParseLogFormat normalizes a textual format into a supported LogFormat.
func ParseLogFormat(candidate string) (LogFormat, error) {
	normalized := LogFormat(strings.ToLower(strings.TrimSpace(candidate)))
	if _, supported := logFormatEncodingMapping[normalized]; !supported {
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, candidate)
	}
	return normalized, nil
}

// CreateLogger builds a zap.Logger for the requested level and format. Both values are matched
// case-insensitively; structured output carries ISO-8601 timestamps under "timestamp".
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	logLevel, levelError := ParseLogLevel(string(requestedLogLevel))
	if levelError != nil {
		return nil, levelError
	}
	logFormat, formatError := ParseLogFormat(string(requestedLogFormat))
	if formatError != nil {
		return nil, formatError
	}

	configuration := zap.NewProductionConfig()
	configuration.EncoderConfig.TimeKey = timestampKeyConstant
	configuration.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	configuration.Sampling = nil
	if logFormat == LogFormatConsole {
		configuration = zap.NewDevelopmentConfig()
		configuration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		configuration.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant)
		configuration.DisableStacktrace = true
	}
	configuration.Level = zap.NewAtomicLevelAt(logLevelMapping[logLevel])
	configuration.Encoding = logFormatEncodingMapping[logFormat]
	configuration.OutputPaths = append([]string{}, factory.outputPaths...)
	configuration.ErrorOutputPaths = append([]string{}, factory.outputPaths...)

	return configuration.Build()
}
