package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"go-plate-recognizer/internal/recognizer"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeProcessing   ErrorType = "processing"
	ErrorTypeRecognition  ErrorType = "recognition"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(t ErrorType, code int, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, StatusCode: code, Cause: cause}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return newError(ErrorTypeProcessing, http.StatusUnprocessableEntity, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, cause error) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message, cause)
}

// FromRecognition maps a recognizer error onto an AppError. Errors that are
// already AppErrors pass through unchanged.
func FromRecognition(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var re *recognizer.RecognitionError
	var encErr *recognizer.EncodingError
	switch {
	case stderrors.As(err, &re):
		code := http.StatusUnprocessableEntity
		switch re.Kind {
		case recognizer.KindImageEmpty, recognizer.KindUnsupportedPlateType, recognizer.KindColorTypeMismatch:
			code = http.StatusBadRequest
		case recognizer.KindUnknown:
			code = http.StatusBadGateway
		}
		e := newError(ErrorTypeRecognition, code, "recognition failed", err)
		e.Details = re.Kind.String()
		return e
	case stderrors.As(err, &encErr):
		return NewValidationError("invalid option value", err)
	case stderrors.Is(err, recognizer.ErrGeometryMismatch):
		return NewValidationError("frame size does not match session", err)
	case stderrors.Is(err, recognizer.ErrSessionClosed):
		return NewConflictError("session is closed", err)
	case stderrors.Is(err, recognizer.ErrAllocation):
		return NewInternalError("buffer allocation failed", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("recognition timed out", err)
	default:
		return NewInternalError("recognition failed", err)
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
