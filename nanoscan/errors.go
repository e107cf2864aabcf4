package nanoscan

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is generated when the vendor library can not be loaded
	// on this platform
	ErrUnsupported = errors.New("NS2_Interop is only available on windows with cgo")

	// ErrNotInitialized is generated when the library is used before Init or
	// after Shutdown; the vendor library crashes in that state
	ErrNotInitialized = errors.New("NanoScan interop not initialized")

	// ErrNoDevice is generated when no profiler is connected
	ErrNoDevice = errors.New("no NanoScan devices connected")

	// ErrDeviceInUse is generated when every connected profiler is claimed
	// by another program
	ErrDeviceInUse = errors.New("all NanoScan devices in use")

	// ErrRateNotAllowed is generated when a rotation frequency is requested
	// that the scan head does not support
	ErrRateNotAllowed = errors.New("rotation frequency not allowed by the scan head")

	// ErrDAQStopped is generated when waiting for data without running data
	// acquisition
	ErrDAQStopped = errors.New("data acquisition is not running")
)

// Error is a non-success status returned by a native call
type Error struct {
	// Func is the native function
	Func string

	// Code is the status it returned
	Code int32
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Func, e.Code)
}

// status converts the status of a native call to an error; zero is success
func status(fn string, code int32) error {
	if code == 0 {
		return nil
	}
	return &Error{Func: fn, Code: code}
}
