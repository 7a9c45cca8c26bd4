// Package errors provides structured error handling for scanfinder operations.
// It defines error codes, error types, and the mapping from fatal pre-scan
// conditions to process exit statuses.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// Engine and scanning errors.
	CodeEngineMissing ErrorCode = "ENGINE_MISSING"
	CodeNoTargets     ErrorCode = "NO_TARGETS"

	// File system errors.
	CodeFileNotFound     ErrorCode = "FILE_NOT_FOUND"
	CodeFileRead         ErrorCode = "FILE_READ"
	CodeFileWrite        ErrorCode = "FILE_WRITE"
	CodeDirectoryMissing ErrorCode = "DIRECTORY_MISSING"
)

// Process exit statuses for fatal conditions detected before or after a batch.
const (
	ExitOK               = 0
	ExitGeneric          = 1
	ExitEngineMissing    = 2
	ExitInputMissing     = 3
	ExitOutputDirMissing = 4
	ExitInputUnreadable  = 5
	ExitNoTargets        = 6
	ExitConfigInvalid    = 7
	ExitWriteFailed      = 8
)

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
	}
}

// FileError represents failures reading inputs or writing reports.
type FileError struct {
	Code    ErrorCode
	Message string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (path: %s): %v", e.Code, e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (path: %s)", e.Code, e.Message, e.Path)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Cause
}

// NewFileError creates a file error for the given path.
func NewFileError(code ErrorCode, message, path string, err error) *FileError {
	return &FileError{
		Code:    code,
		Message: message,
		Path:    path,
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

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var fileErr *FileError
	if stderrors.As(err, &fileErr) {
		return fileErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// ExitCode maps an error to the process exit status for its condition.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch GetCode(err) {
	case CodeEngineMissing:
		return ExitEngineMissing
	case CodeFileNotFound:
		return ExitInputMissing
	case CodeDirectoryMissing:
		return ExitOutputDirMissing
	case CodeFileRead:
		return ExitInputUnreadable
	case CodeNoTargets:
		return ExitNoTargets
	case CodeConfiguration, CodeValidation:
		return ExitConfigInvalid
	case CodeFileWrite:
		return ExitWriteFailed
	default:
		return ExitGeneric
	}
}

// Common error creation functions

// ErrEngineMissing creates an error for a missing scan engine binary.
func ErrEngineMissing(binary string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeEngineMissing, "nmap is not installed on the system", binary, err)
}

// ErrNoTargets creates an error for an input that yielded no scannable addresses.
func ErrNoTargets(path string) *FileError {
	return NewFileError(CodeNoTargets, "no valid IPs found in file", path, nil)
}

// ErrInputMissing creates an error for an input file that does not exist.
func ErrInputMissing(path string) *FileError {
	return NewFileError(CodeFileNotFound, "file not found", path, nil)
}

// ErrOutputDirMissing creates an error for a missing output directory.
func ErrOutputDirMissing(path string) *FileError {
	return NewFileError(CodeDirectoryMissing, "output directory not found", path, nil)
}
