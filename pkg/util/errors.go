// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	ErrNotConnected     = errors.New("device transport not initialized")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrValidationFailed = errors.New("validation failed")
	ErrUnknownRole      = errors.New("unknown role")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrTimeout          = errors.New("timed out")
	ErrCommandFailed    = errors.New("command failed")
)

// ConfigError is a fatal precondition failure. It is never retried.
type ConfigError struct {
	Component string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %v", e.Component, e.Err)
}

// Unwrap returns both the cause and ErrInvalidConfig so either can be matched with errors.Is.
func (e *ConfigError) Unwrap() []error {
	return []error{e.Err, ErrInvalidConfig}
}

// NewConfigError creates a configuration error for a component
func NewConfigError(component string, err error) *ConfigError {
	return &ConfigError{Component: component, Err: err}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// TimeoutError reports a target that did not converge within its attempt budget.
type TimeoutError struct {
	Target   string
	Phase    string // "dhcp", "static", "connectivity"
	Attempts int
	Detail   string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out waiting for %s on %s after %d attempts", e.Phase, e.Target, e.Attempts)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(target, phase string, attempts int, detail string) *TimeoutError {
	return &TimeoutError{
		Target:   target,
		Phase:    phase,
		Attempts: attempts,
		Detail:   detail,
	}
}

// CommandError wraps a transport failure with the command that triggered it
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("sending %q: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() []error {
	return []error{e.Err, ErrCommandFailed}
}
