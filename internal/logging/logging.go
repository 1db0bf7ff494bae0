// Package logging wraps logrus with the structured-field conventions used
// throughout the query pipeline: the engine's entries carry a tenant id and,
// where applicable, the stage, elapsed time, row count, and change count.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper over *logrus.Entry. Components take a *Logger
// (or nil, via Discard) rather than reaching for a package-level global.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing JSON-formatted entries to w at the given level.
func New(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{entry: logrus.NewEntry(l)}
}

// Default builds a Logger writing to stderr at Info level.
func Default() *Logger {
	return New(os.Stderr, logrus.InfoLevel)
}

// Discard returns a Logger whose entries are dropped. Safe for use when no
// logger was supplied to a component.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(l)}
}

// WithField returns a Logger carrying an additional structured field.
func (l *Logger) WithField(key string, value any) *Logger {
	if l == nil {
		return Discard()
	}
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a Logger carrying several additional structured fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return Discard()
	}
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debug(args ...any) {
	if l == nil {
		return
	}
	l.entry.Debug(args...)
}

func (l *Logger) Info(args ...any) {
	if l == nil {
		return
	}
	l.entry.Info(args...)
}

func (l *Logger) Warn(args ...any) {
	if l == nil {
		return
	}
	l.entry.Warn(args...)
}

func (l *Logger) Error(args ...any) {
	if l == nil {
		return
	}
	l.entry.Error(args...)
}
