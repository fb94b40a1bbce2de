package access

import (
	"fmt"
)

// AccessErrorType represents the type of access control error
type AccessErrorType string

const (
	ErrorTypeUnknownRole          AccessErrorType = "unknown_role"
	ErrorTypeUnknownActor         AccessErrorType = "unknown_actor"
	ErrorTypeHierarchyCycle       AccessErrorType = "hierarchy_cycle"
	ErrorTypeDirectoryFailure     AccessErrorType = "directory_failure"
	ErrorTypeResolutionTimeout    AccessErrorType = "resolution_timeout"
	ErrorTypeMissingOwnership     AccessErrorType = "missing_ownership"
	ErrorTypeAuditWrite           AccessErrorType = "audit_write"
	ErrorTypeInvalidConfiguration AccessErrorType = "invalid_configuration"
	ErrorTypeSystemError          AccessErrorType = "system_error"
)

// AccessError represents an access-control error with detailed context
type AccessError struct {
	Type     AccessErrorType `json:"type"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	ActorID  string          `json:"actor_id,omitempty"`
	Resource string          `json:"resource,omitempty"`
	Cause    error           `json:"-"`
}

// Error implements the error interface
func (e *AccessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying cause of the error
func (e *AccessError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is matching on the predefined sentinel errors by
// comparing type and code rather than pointer identity
func (e *AccessError) Is(target error) bool {
	t, ok := target.(*AccessError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// NewAccessError creates a new access error
func NewAccessError(errorType AccessErrorType, code, message string) *AccessError {
	return &AccessError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewAccessErrorWithCause creates a new access error with an underlying cause
func NewAccessErrorWithCause(errorType AccessErrorType, code, message string, cause error) *AccessError {
	return &AccessError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithActor returns a copy of the error annotated with the acting actor
func (e *AccessError) WithActor(actorID string) *AccessError {
	clone := *e
	clone.ActorID = actorID
	return &clone
}

// WithResource returns a copy of the error annotated with the resource
func (e *AccessError) WithResource(resource string) *AccessError {
	clone := *e
	clone.Resource = resource
	return &clone
}

// WithCause returns a copy of the error carrying an underlying cause
func (e *AccessError) WithCause(cause error) *AccessError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// Predefined access errors
var (
	ErrUnknownRole = NewAccessError(
		ErrorTypeUnknownRole,
		ErrorCodeUnknownRole,
		"Role is not part of the organizational hierarchy",
	)

	ErrUnknownActor = NewAccessError(
		ErrorTypeUnknownActor,
		ErrorCodeUnknownActor,
		"Actor could not be resolved in the organizational directory",
	)

	ErrHierarchyCycle = NewAccessError(
		ErrorTypeHierarchyCycle,
		ErrorCodeHierarchyCycle,
		"Organizational hierarchy contains a cycle",
	)

	ErrDirectoryFailure = NewAccessError(
		ErrorTypeDirectoryFailure,
		ErrorCodeDirectoryFailure,
		"Organizational directory lookup failed",
	)

	ErrResolutionTimeout = NewAccessError(
		ErrorTypeResolutionTimeout,
		ErrorCodeResolutionTimeout,
		"Downline resolution exceeded the configured timeout",
	)

	ErrMissingOwnership = NewAccessError(
		ErrorTypeMissingOwnership,
		ErrorCodeMissingOwnership,
		"Record is missing required ownership fields",
	)

	ErrAuditWriteFailed = NewAccessError(
		ErrorTypeAuditWrite,
		ErrorCodeAuditWriteFailed,
		"Audit entry could not be persisted",
	)
)

// IsAccessError checks if an error is an access error
func IsAccessError(err error) bool {
	_, ok := err.(*AccessError)
	return ok
}

// GetAccessError extracts an access error from a generic error
func GetAccessError(err error) (*AccessError, bool) {
	accessErr, ok := err.(*AccessError)
	return accessErr, ok
}

// ConfigurationError represents a configuration-related error
type ConfigurationError struct {
	Component string `json:"component"`
	Setting   string `json:"setting"`
	Value     string `json:"value"`
	Message   string `json:"message"`
}

// Error implements the error interface for ConfigurationError
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s.%s='%s': %s", e.Component, e.Setting, e.Value, e.Message)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, setting, value, message string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Setting:   setting,
		Value:     value,
		Message:   message,
	}
}
