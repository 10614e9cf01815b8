// Package goroutine launches background work with panic recovery.
package goroutine

import (
	"runtime/debug"

	"glint/internal/shared/logger"
)

// SafeGo runs fn on its own goroutine. A panic in fn is logged with its
// stack and absorbed; the process keeps running. name tags the log entry
// so concurrent loops stay distinguishable. A nil log falls back to the
// process logger.
func SafeGo(log logger.Interface, name string, fn func()) {
	if log == nil {
		log = logger.NewLogger()
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Named(name).Errorw("background goroutine panicked",
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
