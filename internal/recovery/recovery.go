// Package recovery provides a top-of-goroutine panic handler, grounded
// on ColonelBlimp-cwdecoder's internal/recovery — the ambient crash
// reporting that main defers so a panic on the main goroutine does not
// take the whole process down silently.
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"
)

// HandlePanic should be deferred at the top of main() or any goroutine
// that must not let a panic escape unnoticed. It logs and exits 1.
func HandlePanic() {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details and runs cleanup before exiting.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}
