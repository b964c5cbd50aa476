package services

import (
	"errors"
	"fmt"
	"net/http"

	"agora/internal/repositories"
)

// ServiceError is the structured error every service returns. The
// Type drives the HTTP mapping at the handler layer.
type ServiceError struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	Cause      error          `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error { return e.Cause }

// GetStatusCode returns the HTTP status code for this error.
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// NewValidationError creates a validation error; Details carries the
// field-level messages for form redisplay.
func NewValidationError(message string, details map[string]any) *ServiceError {
	return &ServiceError{
		Type:       "VALIDATION_ERROR",
		Message:    message,
		Details:    details,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *ServiceError {
	return &ServiceError{
		Type:       "NOT_FOUND",
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewForbiddenError creates a permission-denied error.
func NewForbiddenError(message string) *ServiceError {
	return &ServiceError{
		Type:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewBusinessError creates a business rule violation.
func NewBusinessError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       "BUSINESS_ERROR",
		Message:    message,
		Code:       code,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewConflictError creates a conflict error for storage-layer
// uniqueness violations.
func NewConflictError(message, code string) *ServiceError {
	return &ServiceError{
		Type:       "CONFLICT",
		Message:    message,
		Code:       code,
		StatusCode: http.StatusConflict,
	}
}

// NewInternalError creates an internal error, wrapping the cause for
// logging without exposing it to callers.
func NewInternalError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// classifyRepoError maps repository errors onto the service taxonomy:
// missing rows become NOT_FOUND, unique violations CONFLICT, anything
// else an internal error with the generic message.
func classifyRepoError(err error, notFoundMsg, internalMsg string) *ServiceError {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return NewNotFoundError(notFoundMsg)
	case repositories.IsUniqueViolation(err):
		return NewConflictError("the submitted change conflicts with existing data", "unique_violation")
	default:
		return NewInternalError(internalMsg, err)
	}
}
