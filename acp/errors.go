package acp

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrAlreadyStarted is returned when a component is started twice.
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotStarted is returned when an operation requires a started component.
	ErrNotStarted = errors.New("not started")

	// ErrConnClosed is returned when an operation is attempted on a closed connection.
	ErrConnClosed = errors.New("connection closed")

	// ErrSessionNotFound is returned when a session id is not registered.
	ErrSessionNotFound = errors.New("session not found")
)

// RPCError represents a JSON-RPC error returned by the remote peer.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ProcessError represents an error with the subordinate agent subprocess.
type ProcessError struct {
	Cause    error
	Message  string
	ExitCode int
}

func (e *ProcessError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s (exit code %d)", e.Message, e.ExitCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// ProtocolError represents a protocol-level error such as an unparsable
// payload inside an otherwise well-formed frame.
type ProtocolError struct {
	Cause   error
	Message string
	Line    string
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}
