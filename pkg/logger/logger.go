package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"pdf-chat-server/internal/domain"
)

// AppLogger implements the domain.Logger interface on top of logrus.
type AppLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a new logger instance writing to stdout.
// format is "json" or "text".
func NewLogger(levelStr, format string) domain.Logger {
	return New(os.Stdout, levelStr, format)
}

// New builds a logger writing to w.
func New(w io.Writer, levelStr, format string) *AppLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(parseLogLevel(levelStr))

	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	return &AppLogger{entry: logrus.NewEntry(l)}
}

// With returns a child logger that always carries the given key/value pairs.
func (l *AppLogger) With(fields ...interface{}) *AppLogger {
	return &AppLogger{entry: l.entry.WithFields(toFields(fields))}
}

// Info logs an info message
func (l *AppLogger) Info(msg string, fields ...interface{}) {
	l.entry.WithFields(toFields(fields)).Info(msg)
}

// Error logs an error message
func (l *AppLogger) Error(msg string, err error, fields ...interface{}) {
	e := l.entry.WithFields(toFields(fields))
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// Debug logs a debug message
func (l *AppLogger) Debug(msg string, fields ...interface{}) {
	l.entry.WithFields(toFields(fields)).Debug(msg)
}

// Warn logs a warning message
func (l *AppLogger) Warn(msg string, fields ...interface{}) {
	l.entry.WithFields(toFields(fields)).Warn(msg)
}

// toFields turns alternating key/value arguments into logrus fields.
// A trailing key without a value is kept under "extra".
func toFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			fields["extra"] = key
			break
		}
		fields[key] = kv[i+1]
	}
	return fields
}

// parseLogLevel converts string log level to a logrus level
func parseLogLevel(levelStr string) logrus.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
