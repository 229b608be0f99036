package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a request that is not valid in the current state
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeTransport indicates that no response was received from the terminology server
	ErrorTypeTransport ErrorType = "TRANSPORT"

	// ErrorTypeUpstream indicates a non-2xx response from the terminology server
	ErrorTypeUpstream ErrorType = "UPSTREAM"

	// ErrorTypeParse indicates a response body that is not valid JSON or has the wrong shape
	ErrorTypeParse ErrorType = "PARSE"

	// ErrorTypeDecode indicates malformed percent-encoding in an inbound ECL fragment
	ErrorTypeDecode ErrorType = "DECODE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType `json:"kind"`
	Message string    `json:"message"`
	// Status is the upstream HTTP status for ErrorTypeUpstream, zero otherwise.
	Status int   `json:"status,omitempty"`
	Err    error `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error type to the status the API responds with.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation, ErrorTypeDecode:
		return http.StatusBadRequest
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTransport:
		return http.StatusBadGateway
	case ErrorTypeUpstream:
		if e.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case ErrorTypeParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewTransportError creates an error for a request that received no response
func NewTransportError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewUpstreamError creates an error for a non-2xx terminology server response
func NewUpstreamError(status int, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Status:  status,
	}
}

// NewParseError creates an error for an unreadable response body
func NewParseError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewDecodeError creates an error for a malformed percent-encoded fragment
func NewDecodeError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDecode,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Type == t
}

// Normalize converts any error into an AppError. Errors that are already
// AppErrors are returned as is; cancelled or timed-out contexts count as
// transport failures since no response was received.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewTransportError("request to terminology server did not complete", err)
	}
	return NewInternalError("unexpected error", err)
}
