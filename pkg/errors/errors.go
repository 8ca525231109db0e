package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType classifies an application error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// Error codes surfaced in the response body
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidJSON  = "INVALID_JSON"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
	CodeDatabase     = "DATABASE_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeExternal     = "EXTERNAL_SERVICE_ERROR"
)

// AppError is an error that knows how it should be presented over HTTP.
// Operational errors are anticipated failures (missing resources, bad input);
// non-operational errors are faults.
type AppError struct {
	Type        ErrorType              `json:"type"`
	Message     string                 `json:"message"`
	Code        string                 `json:"code,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Cause       error                  `json:"-"`
	StackTrace  string                 `json:"-"`
	HTTPStatus  int                    `json:"-"`
	Operational bool                   `json:"-"`
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

// WithCode overrides the error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails attaches details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// AsOperational overrides the operational flag
func (e *AppError) AsOperational(operational bool) *AppError {
	e.Operational = operational
	return e
}

// Status returns the HTTP status, defaulting to 500
func (e *AppError) Status() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// ErrorCode returns the code, defaulting to INTERNAL_ERROR
func (e *AppError) ErrorCode() string {
	if e.Code == "" {
		return CodeInternal
	}
	return e.Code
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return sb.String()
}

func newAppError(errType ErrorType, code, message string, status int, operational bool) *AppError {
	return &AppError{
		Type:        errType,
		Code:        code,
		Message:     message,
		HTTPStatus:  status,
		Operational: operational,
		StackTrace:  captureStackTrace(),
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, CodeValidation, message, http.StatusBadRequest, true)
}

// NewInvalidJSONError reports a request body that could not be parsed
func NewInvalidJSONError(err error) *AppError {
	return newAppError(ErrorTypeValidation, CodeInvalidJSON, "Invalid JSON body", http.StatusBadRequest, true).
		WithCause(err)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, true)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, CodeConflict, message, http.StatusConflict, true)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "Unauthorized"
	}
	return newAppError(ErrorTypeUnauthorized, CodeUnauthorized, message, http.StatusUnauthorized, true)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return newAppError(ErrorTypeRateLimit, CodeRateLimited,
		fmt.Sprintf("Too many requests: limit is %d per %s", limit, window), http.StatusTooManyRequests, true)
}

// NewInternalError creates an unexpected internal error
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, CodeInternal, message, http.StatusInternalServerError, false)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newAppError(ErrorTypeUnavailable, CodeUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service), http.StatusServiceUnavailable, true)
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, CodeDatabase,
		fmt.Sprintf("database operation '%s' failed", operation), http.StatusInternalServerError, false).
		WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newAppError(ErrorTypeExternal, CodeExternal,
		fmt.Sprintf("external service '%s' error", service), http.StatusBadGateway, true).
		WithCause(err)
}

// GetAppError extracts an AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// Wrap adds context to an error. AppErrors keep their classification.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}
