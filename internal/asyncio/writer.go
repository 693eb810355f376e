// Package asyncio provides the uniform non-blocking write abstraction
// (spec.md §4.3 C5) used by encoders to push bytes toward a socket, a
// pooled buffer, or a file, without ever blocking the caller.
package asyncio

// Writer is the capability set every encoder output sink implements.
// Write is synchronous best-effort (returns however many bytes it
// managed without blocking). WriteAsync delivers (err, count) exactly
// once via onDone, possibly synchronously if the implementation can
// complete immediately. Rewind repositions for in-place patching (e.g. a
// WAVE header's size field) and is a no-op on sinks that can't seek, such
// as sockets.
type Writer interface {
	Write(data []byte) (int, error)
	WriteAsync(data []byte, onDone func(err error, n int))
	Rewind(pos int64) error
}
