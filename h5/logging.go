package h5

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// pkgLogger receives diagnostics the library cannot return, most
// notably errors swallowed by garbage-collection cleanups. It defaults
// to a no-op logger.
var pkgLogger atomic.Pointer[zap.Logger]

func init() {
	pkgLogger.Store(zap.NewNop())
}

// SetLogger routes library diagnostics to l. Passing nil restores the
// no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger.Store(l)
}

func logger() *zap.Logger {
	return pkgLogger.Load()
}
