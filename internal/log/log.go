// Package log provides the process-wide structured logger, backed by logrus.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool

	// Entry exposes the logrus entry for bridging third-party loggers.
	Entry() *logrus.Entry
}

var (
	mu     sync.RWMutex
	logger Logger
)

func init() {
	l, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	logger = l
}

// GetLogger returns the global logger. It is usable before Init.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the global logger with one built from cfg.
func Init(cfg *LoggerConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}
