// Package errors provides structured error handling for scanwrap operations.
// It defines error codes, error types, and provides utilities for creating
// and handling errors with context and structured information.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeBusy          ErrorCode = "BUSY"

	// Scanner process errors.
	CodeTargetInvalid ErrorCode = "TARGET_INVALID"
	CodeSpawnFailed   ErrorCode = "SPAWN_FAILED"
	CodeNonZeroExit   ErrorCode = "NON_ZERO_EXIT"

	// Report errors.
	CodeFileRead   ErrorCode = "FILE_READ"
	CodeXMLParse   ErrorCode = "XML_PARSE"
	CodeNoDocument ErrorCode = "NO_DOCUMENT"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
)

// ScanError represents an error that occurred while preparing or running a scan.
type ScanError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ReportError represents a failure to read or parse one of the report files.
type ReportError struct {
	Code  ErrorCode
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *ReportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Path, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Path)
}

// Unwrap returns the underlying error.
func (e *ReportError) Unwrap() error {
	return e.Cause
}

// WrapReportError wraps a file-level failure for the given report path.
func WrapReportError(code ErrorCode, path string, err error) *ReportError {
	return &ReportError{Code: code, Path: path, Cause: err}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
	}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from the first coded error in the chain.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Code
	}
	var reportErr *ReportError
	if errors.As(err, &reportErr) {
		return reportErr.Code
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return GetCode(err) == code
}

// Common error creation functions

// ErrNoTargets creates an error for a request without any usable target.
func ErrNoTargets() *ScanError {
	return NewScanError(CodeTargetInvalid, "No targets specified")
}

// ErrSpawnFailed creates an error for a scanner process that could not be started.
func ErrSpawnFailed(executable string, err error) *ScanError {
	return WrapScanError(CodeSpawnFailed, "Failed to start scanner", err).
		WithContext("executable", executable)
}

// ErrNonZeroExit creates an error describing a non-zero scanner exit status.
func ErrNonZeroExit(code int) *ScanError {
	return NewScanError(CodeNonZeroExit, fmt.Sprintf("Scanner exited with status %d", code)).
		WithContext("exit_code", code)
}

// ErrNoDocument creates an error for JSON access on a report without XML.
func ErrNoDocument() *ScanError {
	return NewScanError(CodeNoDocument, "No parsed XML document available")
}

// ErrBusy creates an error for a limiter that cannot admit another session.
func ErrBusy(base string) *ScanError {
	return NewScanError(CodeBusy, "Output base already in use").WithContext("output_base", base)
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
