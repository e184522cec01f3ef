package httpcache

import (
	"log/slog"
	"sync"
)

var (
	pkgLogger     *slog.Logger
	pkgLoggerOnce sync.Once
)

// SetLogger sets the *slog.Logger used by the package. If never called,
// GetLogger lazily falls back to slog.Default().
func SetLogger(l *slog.Logger) {
	pkgLogger = l
}

// GetLogger returns the configured logger, defaulting to slog.Default().
func GetLogger() *slog.Logger {
	pkgLoggerOnce.Do(func() {
		if pkgLogger == nil {
			pkgLogger = slog.Default()
		}
	})
	return pkgLogger
}
