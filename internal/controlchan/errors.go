package controlchan

import "fmt"

// ErrorKind categorizes session failures.
type ErrorKind int

const (
	// KindConnection indicates the control device could not be reached or
	// the login handshake failed
	KindConnection ErrorKind = iota
	// KindCommand indicates the device accepted the session but rejected a
	// command (non-empty stderr)
	KindCommand
	// KindTimeout indicates a read deadline expired waiting for a marker or
	// prompt; fatal to the current attempt
	KindTimeout
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "Connection Error"
	case KindCommand:
		return "Command Error"
	case KindTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// SessionError is the error type returned by all session operations.
type SessionError struct {
	Kind    ErrorKind // Category of error
	Message string    // Human-readable error message
	Addr    string    // Control device address (for context)
	Stderr  string    // Captured stderr (command errors only)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *SessionError) Error() string {
	switch {
	case e.Stderr != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Stderr)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Unwrap returns the underlying error for error chain inspection
func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a connection-level error
func NewConnectionError(addr, message string, err error) *SessionError {
	return &SessionError{Kind: KindConnection, Message: message, Addr: addr, Err: err}
}

// NewCommandError creates an error for a command the device rejected
func NewCommandError(addr, message, stderr string) *SessionError {
	return &SessionError{Kind: KindCommand, Message: message, Addr: addr, Stderr: stderr}
}

// NewTimeoutError creates a read-timeout error
func NewTimeoutError(addr, message string, err error) *SessionError {
	return &SessionError{Kind: KindTimeout, Message: message, Addr: addr, Err: err}
}

// IsConnectionError reports whether err is a session connection error
func IsConnectionError(err error) bool {
	se, ok := err.(*SessionError)
	return ok && se.Kind == KindConnection
}

// IsCommandError reports whether err is a command rejection
func IsCommandError(err error) bool {
	se, ok := err.(*SessionError)
	return ok && se.Kind == KindCommand
}

// IsTimeoutError reports whether err is a read timeout
func IsTimeoutError(err error) bool {
	se, ok := err.(*SessionError)
	return ok && se.Kind == KindTimeout
}
