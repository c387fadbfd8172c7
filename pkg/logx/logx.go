// Package logx provides structured key/value logging on top of logrus.
// All output goes to stdout so the service supervisor captures it.
package logx

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry with a component field and a variadic
// key/value call style: logger.Info("msg", "key", value, ...).
type Logger struct {
	backend *logrus.Logger
	entry   *logrus.Entry
}

// NewLogger creates a logger at the given level ("trace", "debug", "info",
// "warn", "error"); unknown levels fall back to info.
func NewLogger(level, component string) *Logger {
	backend := logrus.New()
	backend.SetOutput(os.Stdout)
	backend.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	backend.SetLevel(parseLevel(level))

	entry := logrus.NewEntry(backend)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return &Logger{backend: backend, entry: entry}
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level string) {
	l.backend.SetLevel(parseLevel(level))
}

// WithComponent returns a logger tagged with a different component name,
// sharing the same backend and level.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		backend: l.backend,
		entry:   logrus.NewEntry(l.backend).WithField("component", component),
	}
}

func (l *Logger) fields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		fields[key] = kv[i+1]
	}
	if len(kv)%2 != 0 {
		fields["extra"] = kv[len(kv)-1]
	}
	return fields
}

func (l *Logger) Trace(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Trace(msg)
}

func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Debug(msg)
}

func (l *Logger) Info(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Info(msg)
}

func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Warn(msg)
}

func (l *Logger) Error(msg string, kv ...interface{}) {
	l.entry.WithFields(l.fields(kv)).Error(msg)
}
