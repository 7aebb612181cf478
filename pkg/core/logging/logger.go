// Package logging holds the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.RWMutex
	logg = newLogger(os.Stdout, logrus.InfoLevel)
)

func newLogger(out io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(level)
	l.SetOutput(out)
	return l
}

// Get returns the shared logger.
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logg
}

// Configure replaces the shared logger. Unknown levels fall back to info.
func Configure(level string, out io.Writer) *logrus.Logger {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if out == nil {
		out = os.Stdout
	}
	l := newLogger(out, lvl)

	mu.Lock()
	logg = l
	mu.Unlock()
	return l
}

// For returns an entry scoped to a module name.
func For(module string) *logrus.Entry {
	return Get().WithField("module", module)
}

// Discard is a logger for tests and embedded use where output is unwanted.
func Discard() *logrus.Entry {
	return logrus.NewEntry(newLogger(io.Discard, logrus.PanicLevel))
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
