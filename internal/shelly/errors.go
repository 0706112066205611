package shelly

import "fmt"

// ErrorType categorizes device API failures
type ErrorType int

const (
	// ErrTypeNetwork indicates the device could not be reached
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates a non-200 status from the device
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed JSON response
	ErrTypeParse
	// ErrTypeNotFound indicates the device could not be located on the
	// production network after the configured number of attempts
	ErrTypeNotFound
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeNotFound:
		return "Device Not Found"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// DeviceError is the error type returned by device API operations.
type DeviceError struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	DeviceAddr string    // Device address (for context)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a device-unreachable error
func NewNetworkError(addr, message string, err error) *DeviceError {
	return &DeviceError{Type: ErrTypeNetwork, Message: message, DeviceAddr: addr, Err: err}
}

// NewHTTPError creates an error for an unexpected device status code
func NewHTTPError(addr string, statusCode int) *DeviceError {
	return &DeviceError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		StatusCode: statusCode,
		DeviceAddr: addr,
	}
}

// NewParseError creates an error for a malformed device response
func NewParseError(addr, message string, err error) *DeviceError {
	return &DeviceError{Type: ErrTypeParse, Message: message, DeviceAddr: addr, Err: err}
}

// NewNotFoundError creates an error for a device that never surfaced
func NewNotFoundError(message string) *DeviceError {
	return &DeviceError{Type: ErrTypeNotFound, Message: message}
}

// IsNetworkError reports whether err is a device-unreachable error
func IsNetworkError(err error) bool {
	de, ok := err.(*DeviceError)
	return ok && de.Type == ErrTypeNetwork
}

// IsNotFoundError reports whether err indicates the device never surfaced
func IsNotFoundError(err error) bool {
	de, ok := err.(*DeviceError)
	return ok && de.Type == ErrTypeNotFound
}
