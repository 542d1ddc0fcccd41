package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestConsoleAppenderFormat(t *testing.T) {
	var buf bytes.Buffer
	appender := NewWriterAppender(&buf)

	entry := zapcore.Entry{
		Time:       time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		Level:      zapcore.InfoLevel,
		LoggerName: "planner",
		Message:    "cycle complete",
	}
	test.That(t, appender.Write(entry, nil), test.ShouldBeNil)

	line := buf.String()
	test.That(t, strings.Contains(line, "2024-05-01T12:30:00.000Z"), test.ShouldBeTrue)
	test.That(t, strings.Contains(line, "INFO"), test.ShouldBeTrue)
	test.That(t, strings.Contains(line, "planner"), test.ShouldBeTrue)
	test.That(t, strings.Contains(line, "cycle complete"), test.ShouldBeTrue)
}

func TestConsoleAppenderFields(t *testing.T) {
	var buf bytes.Buffer
	appender := NewWriterAppender(&buf)

	entry := zapcore.Entry{Level: zapcore.DebugLevel, Message: "with fields"}
	fields := []zapcore.Field{{Key: "candidates", Type: zapcore.Int64Type, Integer: 3}}
	test.That(t, appender.Write(entry, fields), test.ShouldBeNil)
	test.That(t, strings.Contains(buf.String(), `"candidates":3`), test.ShouldBeTrue)
}

func TestLoggerWritesThroughAppender(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithAppender("test", zapcore.DebugLevel, NewWriterAppender(&buf))

	logger.Infow("hello", "k", "v")
	out := buf.String()
	test.That(t, strings.Contains(out, "hello"), test.ShouldBeTrue)
	test.That(t, strings.Contains(out, `"k":"v"`), test.ShouldBeTrue)

	buf.Reset()
	logger.Sublogger("sub").Debug("nested")
	out = buf.String()
	test.That(t, strings.Contains(out, "test.sub"), test.ShouldBeTrue)
	test.That(t, strings.Contains(out, "nested"), test.ShouldBeTrue)
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithAppender("test", zapcore.WarnLevel, NewWriterAppender(&buf))

	logger.Debug("quiet")
	logger.Info("quiet too")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Warn("loud")
	test.That(t, strings.Contains(buf.String(), "loud"), test.ShouldBeTrue)
}
