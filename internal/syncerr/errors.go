// Package syncerr holds the error kinds shared by the master and the minion.
//
// Only a SetupError is fatal. Everything else is reported at the granularity
// of one file or one connection and the owning loop keeps going.
package syncerr

import (
	"errors"
	"fmt"
)

// SetupError is a fatal error raised before a role enters its main loop:
// wrong role, unreadable watched file, unbindable address.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// TransportError covers connect, write, read, accept and decode failures.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FileIOError is a read or write failure on a watched file during the running loop.
type FileIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("file %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error { return e.Err }

func Setup(op string, err error) error {
	return &SetupError{Op: op, Err: err}
}

func Setupf(op string, format string, args ...any) error {
	return &SetupError{Op: op, Err: fmt.Errorf(format, args...)}
}

func Transport(op, addr string, err error) error {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

func FileIO(op, path string, err error) error {
	return &FileIOError{Op: op, Path: path, Err: err}
}

// IsSetup reports whether err, or anything it wraps, is a SetupError.
func IsSetup(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsFileIO(err error) bool {
	var fe *FileIOError
	return errors.As(err, &fe)
}
