package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewLogrusAdapterFromLogger(logrus.StandardLogger())
)

// GetLogger returns the process-wide default logger. Components should
// prefer an injected Logger; this exists for package-level fallbacks.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetGlobalLogger replaces the process-wide default logger.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		return
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// SetAllLogLevels sets the level on the shared logrus instance so that
// every adapter created from it, present or future, honors the level.
func SetAllLogLevels(level logrus.Level) {
	logrus.SetLevel(level)
	logrus.StandardLogger().SetLevel(level)
}
