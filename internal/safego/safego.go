// Package safego provides a panic-recovering goroutine launcher for background work.
package safego

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Go launches fn in a new goroutine. A panic in fn is recovered and logged
// under name instead of crashing the process. Use it for fire-and-forget work
// such as pipeline runs triggered over HTTP.
func Go(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// Run calls fn synchronously and converts a panic into an error.
func Run(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic", "task", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	return fn()
}

// Recover logs a recovered panic. It must be deferred directly.
func Recover(name string) {
	if r := recover(); r != nil {
		slog.Error("recovered panic in background goroutine", "task", name, "panic", r, "stack", string(debug.Stack()))
	}
}
