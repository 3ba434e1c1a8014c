package eeprom

import (
	"github.com/pkg/errors"
)

// Driver errors.
var (
	// ErrInvalidArgument indicates a zero-length read or write request.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout indicates the write-in-progress bit did not clear within
	// the configured number of status polls.
	ErrTimeout = errors.New("timeout waiting for write completion")

	// ErrBusFault indicates the transport reported a transfer error.
	ErrBusFault = errors.New("bus fault")

	// ErrWriteNotEnabled indicates a WRITE or WRSR frame was attempted
	// without a preceding WREN frame.
	ErrWriteNotEnabled = errors.New("write enable latch not set")

	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("session closed")
)

// BusError records a transport failure and the frame it aborted.
type BusError struct {
	Op     string // Driver operation ("read", "write", ...)
	Opcode Opcode // Frame being transmitted
	Err    error  // Transport error
}

func (e *BusError) Error() string {
	return "eeprom " + e.Op + " (" + e.Opcode.String() + "): " + ErrBusFault.Error() + ": " + e.Err.Error()
}

// Unwrap returns the transport error.
func (e *BusError) Unwrap() error { return e.Err }

// Is reports ErrBusFault as matching.
func (e *BusError) Is(target error) bool { return target == ErrBusFault }
