package config

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes configuration errors.
type ErrorCode string

const (
	// ErrCodeUnreadable indicates the configuration source could not be read
	// or decoded.
	ErrCodeUnreadable ErrorCode = "CONFIG_UNREADABLE"

	// ErrCodeInvalid indicates decoded properties violate the schema.
	ErrCodeInvalid ErrorCode = "CONFIG_INVALID"
)

// Error is a configuration error. It is reported once at load time.
type Error struct {
	Code    ErrorCode
	Message string

	// Path is the configuration file, if any.
	Path string

	// Field names the offending property, if known.
	Field string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path=%s)", msg, e.Path)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsInvalid returns true if err is a schema violation.
// Uses errors.As to handle wrapped errors.
func IsInvalid(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeInvalid
	}
	return false
}

// IsUnreadable returns true if err is a read or decode failure.
func IsUnreadable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeUnreadable
	}
	return false
}
