package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with the field helpers used across groupwatch
type Logger struct {
	*zap.Logger
}

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Config holds logger configuration
type Config struct {
	Level       LogLevel `mapstructure:"level"`
	Environment string   `mapstructure:"environment"`
	Encoding    string   `mapstructure:"encoding"` // json or console
}

// New builds a logger writing to stderr. Stdout is left to the CLI.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(string(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zapcore.InfoLevel
	}

	production := cfg.Environment == "production"
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if production {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	encoding := cfg.Encoding
	if encoding == "" && production {
		encoding = "json"
	}
	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if encoding == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
	return &Logger{Logger: zap.New(core, zap.AddCaller())}, nil
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(zap.Any(key, value))}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &Logger{Logger: l.Logger.With(zapFields...)}
}

// WithComponent names the part of groupwatch a log line comes from
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// WithGroupID scopes the logger to a single group session
func (l *Logger) WithGroupID(groupID string) *Logger {
	return l.WithField("group_id", groupID)
}

// WithMemberID scopes the logger to a group member
func (l *Logger) WithMemberID(memberID string) *Logger {
	return l.WithField("member_id", memberID)
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// ParseLevel maps a config string to a LogLevel, defaulting to info
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

var globalLogger *Logger

// SetGlobalLogger sets the logger components fall back to when none is
// injected
func SetGlobalLogger(logger *Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger, a development logger until one
// is set
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		globalLogger, _ = New(Config{Level: DebugLevel, Environment: "development"})
	}
	return globalLogger
}
