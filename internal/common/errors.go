package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)

// Error codes carried by AppError.Code
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNoFile            = "NO_FILE"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeExtractionFailed  = "EXTRACTION_FAILED"
	CodeEmptyDocument     = "EMPTY_DOCUMENT"
	CodeNotFound          = "NOT_FOUND"
	CodeNotCompleted      = "GENERATION_NOT_COMPLETED"
	CodeUnknownFormat     = "UNKNOWN_EXPORT_FORMAT"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NotFoundErrorf(format string, args ...any) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

func ValidationErrorf(code, format string, args ...any) *AppError {
	return NewAppError(code, fmt.Sprintf(format, args...), ErrValidation)
}
