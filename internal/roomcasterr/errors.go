// Package roomcasterr defines the sentinel errors shared across the
// broadcaster's packages, distinguishing fatal conditions (no forward
// progress possible) from recoverable or expected ones.
package roomcasterr

import "errors"

var (
	// ErrRequestedStop signals a caller-initiated shutdown. It is never
	// logged as an error.
	ErrRequestedStop = errors.New("stop requested")

	// ErrDeviceUnrecoverable signals a capture device error the restore
	// primitive could not fix. The Source and the owning Scheduler must
	// stop.
	ErrDeviceUnrecoverable = errors.New("audio device unrecoverable")

	// ErrNoBufferSpace is back-pressure, not a failure: all buffers in a
	// BufferedWriter's pool are outstanding.
	ErrNoBufferSpace = errors.New("no free output buffer")

	// ErrRingFull is back-pressure from Ring.Enqueue; callers normally
	// never see it directly since the overflow handler absorbs it, but it
	// is exposed for callers that want to distinguish drop reasons.
	ErrRingFull = errors.New("ring buffer full")

	// ErrRingEmpty mirrors ErrRingFull for the underflow path.
	ErrRingEmpty = errors.New("ring buffer empty")

	// ErrMissingClientID is returned by the HTTP opening-handshake parser
	// when the request carries no player identifier.
	ErrMissingClientID = errors.New("missing client id")

	// ErrNotGet is returned when the HTTP data channel's opening request
	// is not a GET.
	ErrNotGet = errors.New("only GET is accepted on the data channel")

	// ErrUnexpectedOpcode marks a protocol violation: a Command Session
	// received an opcode its current state does not accept.
	ErrUnexpectedOpcode = errors.New("unexpected opcode for session state")

	// ErrEncoderOptionMissing is returned by Builder.Build when a
	// required encoder option was never set.
	ErrEncoderOptionMissing = errors.New("encoder builder: required option missing")
)
