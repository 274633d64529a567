package flowstream

import (
	"log/slog"
	"sync/atomic"
)

var pkgLogger atomic.Pointer[slog.Logger]

// SetLogger sets the logger used by operators that log, such as By when an
// event lacks a grouping field. A nil logger restores slog.Default().
func SetLogger(logger *slog.Logger) {
	pkgLogger.Store(logger)
}

func logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
