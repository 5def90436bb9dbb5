//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/crtgo/internal/bindings"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the package logger. It is a no-op logger until SetLogger
// is called.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger configures the logger used by every resource that was not given
// its own, and by native callback dispatch. Pass nil to restore the no-op
// logger.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
	bindings.SetLogger(l)
}

func loggerOr(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return Logger()
}
