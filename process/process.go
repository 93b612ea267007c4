// Package process defines the remote memory accessor contract and the
// address, module and error types shared by every platform backend.
package process

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrModuleNotFound is returned when no loaded module matches the requested name.
	ErrModuleNotFound = errors.New("module not found")

	// ErrUnreadable is matched by every failed remote read, see UnreadableError.
	ErrUnreadable = errors.New("memory unreadable")

	// ErrMalformedString is returned when a bounded string read finds no terminator.
	ErrMalformedString = errors.New("malformed string")
)

// UnreadableError records the remote range that could not be read
type UnreadableError struct {
	Address ProcessMemoryAddress
	Size    ProcessMemorySize
	Err     error
}

// NewUnreadableError wraps err for the range [addr, addr+size)
func NewUnreadableError(addr ProcessMemoryAddress, size ProcessMemorySize, err error) *UnreadableError {
	return &UnreadableError{Address: addr, Size: size, Err: err}
}

func (e *UnreadableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v at %s (%s)", ErrUnreadable, e.Address.ToString(), e.Size.ToString())
	}
	return fmt.Sprintf("%v at %s (%s): %v", ErrUnreadable, e.Address.ToString(), e.Size.ToString(), e.Err)
}

func (e *UnreadableError) Unwrap() error {
	return e.Err
}

func (e *UnreadableError) Is(target error) bool {
	return target == ErrUnreadable
}

// MalformedStringError records where a bounded string read ran out of room
type MalformedStringError struct {
	Address   ProcessMemoryAddress
	MaxLength ProcessMemorySize
}

func (e *MalformedStringError) Error() string {
	return fmt.Sprintf("%v at %s: no terminator within %s", ErrMalformedString, e.Address.ToString(), e.MaxLength.ToString())
}

func (e *MalformedStringError) Is(target error) bool {
	return target == ErrMalformedString
}
