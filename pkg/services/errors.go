// Package services provides the business layer between the HTTP surface and
// persistence.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest         = errors.New("invalid request")
	ErrAutomationNameRequired = errors.New("automation name is required")
	ErrTenantRequired         = errors.New("tenant id is required")
	ErrTriggerNodeRequired    = errors.New("automation must have a trigger node")
	ErrInvalidTriggerType     = errors.New("invalid trigger type")
	ErrInvalidTriggerConfig   = errors.New("invalid trigger configuration")
	ErrUnknownNodeType        = errors.New("unknown node type")
	ErrInvalidNodeConfig      = errors.New("invalid node configuration")
	ErrInvalidEdge            = errors.New("invalid edge")
	ErrInvalidMode            = errors.New("invalid execution mode")

	// Business logic conflicts (409 Conflict).
	ErrAutomationDisabled = errors.New("automation is disabled")
	ErrAutomationDeleted  = errors.New("automation is deleted")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrAutomationNameRequired) ||
		errors.Is(err, ErrTenantRequired) ||
		errors.Is(err, ErrTriggerNodeRequired) ||
		errors.Is(err, ErrInvalidTriggerType) ||
		errors.Is(err, ErrInvalidTriggerConfig) ||
		errors.Is(err, ErrUnknownNodeType) ||
		errors.Is(err, ErrInvalidNodeConfig) ||
		errors.Is(err, ErrInvalidEdge) ||
		errors.Is(err, ErrInvalidMode)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAutomationDisabled) ||
		errors.Is(err, ErrAutomationDeleted)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
