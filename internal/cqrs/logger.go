package cqrs

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"

	"github.com/danghamo/groupwatch/pkg/logger"
)

// watermillLogger routes watermill logs through the application logger
type watermillLogger struct {
	logger *logger.Logger
	fields watermill.LogFields
}

func newWatermillLogger(log *logger.Logger) watermill.LoggerAdapter {
	return &watermillLogger{logger: log.WithComponent("watermill")}
}

func (l *watermillLogger) zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(l.fields)+len(fields))
	for k, v := range l.fields.Add(fields) {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(l.zapFields(fields), zap.Error(err))...)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Info(msg, l.zapFields(fields)...)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.zapFields(fields)...)
}

// Trace is very chatty in watermill; it is folded into debug
func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.zapFields(fields)...)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.logger, fields: l.fields.Add(fields)}
}
