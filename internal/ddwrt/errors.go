package ddwrt

import "fmt"

// ConfigError indicates no valid role assignment or control-device setup
// exists: a required role has no capable device, or a device's verified
// identity does not match its profile. ConfigError is fatal to the whole
// run, not just the current instruction.
type ConfigError struct {
	Message string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("Configuration Error: %s", e.Message)
}

// NewConfigError creates a configuration error
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a configuration error
func IsConfigError(err error) bool {
	_, ok := err.(*ConfigError)
	return ok
}
