// Package logging provides the planner's structured logging facilities.
//
// Loggers are thin wrappers around zap sugared loggers so that callers get the
// familiar Debug/Info/Warn/Error surface plus the "w" structured variants,
// while output formatting is owned by an Appender.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the logging interface handed to every planner component.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger namespaced under this one.
	Sublogger(name string) Logger
}

type impl struct {
	sugared *zap.SugaredLogger
}

// NewLogger returns a named logger writing human-readable lines to stdout.
func NewLogger(name string) Logger {
	return NewLoggerWithAppender(name, zapcore.DebugLevel, NewStdoutAppender())
}

// NewLoggerWithAppender returns a named logger at the given level whose output
// goes to the provided appender.
func NewLoggerWithAppender(name string, level zapcore.Level, appender Appender) Logger {
	core := appenderCore{appender: appender, level: level}
	logger := zap.New(core, zap.AddCaller()).Named(name)
	return &impl{sugared: logger.Sugar()}
}

// NewTestLogger returns a logger wired to the test runner's output.
func NewTestLogger(tb testing.TB) Logger {
	return &impl{sugared: zaptest.NewLogger(tb, zaptest.WrapOptions(zap.AddCaller())).Sugar()}
}

// FromZapCompatible wraps an existing zap sugared logger.
func FromZapCompatible(logger *zap.SugaredLogger) Logger {
	return &impl{sugared: logger}
}

func (l *impl) Debug(args ...interface{})                   { l.sugared.Debug(args...) }
func (l *impl) Debugf(format string, args ...interface{})   { l.sugared.Debugf(format, args...) }
func (l *impl) Debugw(msg string, kv ...interface{})        { l.sugared.Debugw(msg, kv...) }
func (l *impl) Info(args ...interface{})                    { l.sugared.Info(args...) }
func (l *impl) Infof(format string, args ...interface{})    { l.sugared.Infof(format, args...) }
func (l *impl) Infow(msg string, kv ...interface{})         { l.sugared.Infow(msg, kv...) }
func (l *impl) Warn(args ...interface{})                    { l.sugared.Warn(args...) }
func (l *impl) Warnf(format string, args ...interface{})    { l.sugared.Warnf(format, args...) }
func (l *impl) Warnw(msg string, kv ...interface{})         { l.sugared.Warnw(msg, kv...) }
func (l *impl) Error(args ...interface{})                   { l.sugared.Error(args...) }
func (l *impl) Errorf(format string, args ...interface{})   { l.sugared.Errorf(format, args...) }
func (l *impl) Errorw(msg string, kv ...interface{})        { l.sugared.Errorw(msg, kv...) }
func (l *impl) Sublogger(name string) Logger                { return &impl{sugared: l.sugared.Named(name)} }

// appenderCore adapts an Appender into a zapcore.Core.
type appenderCore struct {
	appender Appender
	level    zapcore.Level
	fields   []zapcore.Field
}

func (c appenderCore) Enabled(level zapcore.Level) bool { return level >= c.level }

func (c appenderCore) With(fields []zapcore.Field) zapcore.Core {
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return appenderCore{appender: c.appender, level: c.level, fields: combined}
}

func (c appenderCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return c.appender.Write(entry, combined)
}

func (c appenderCore) Sync() error { return c.appender.Sync() }
