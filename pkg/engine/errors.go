package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/openfroyo/froyo-git/pkg/config"
)

// ErrorClass represents the classification of an error for recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on a later run.
	// Examples: network timeouts, temporary service unavailability.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting or quota exhaustion on a hosting platform.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates a state conflict.
	// Examples: a remote created concurrently by someone else.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	// Examples: invalid configuration, missing credentials, unexpected API status.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the target path that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation kind being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s)%s",
			e.Class, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s)%s",
			e.Class, e.Message, e.Resource, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s%s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapMessage() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassThrottled,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConflict,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value any) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	return classOf(err) == ErrorClassTransient
}

// IsThrottled returns true if the error is classified as throttled.
func IsThrottled(err error) bool {
	return classOf(err) == ErrorClassThrottled
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	return classOf(err) == ErrorClassConflict
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	return classOf(err) == ErrorClassPermanent
}

// IsRetryable returns true if running the batch again could succeed.
// Transient, throttled, and conflict errors are retryable.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err) || IsConflict(err)
}

func classOf(err error) ErrorClass {
	if e := Classify(err); e != nil {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodePermissionDenied   = "PERMISSION_DENIED"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeProviderFailed     = "PROVIDER_FAILED"
	ErrCodeDependencyFailed   = "DEPENDENCY_FAILED"
	ErrCodeTypeMismatch       = "TYPE_MISMATCH"
	ErrCodeMissingEnvVariable = "MISSING_ENV_VARIABLE"
	ErrCodeUnexpectedStatus   = "UNEXPECTED_STATUS"
	ErrCodeCancelled          = "CANCELLED"
)

// MissingEnvVariableError reports a required environment parameter that
// could not be resolved for a target.
type MissingEnvVariableError struct {
	// EnvKey is the exact key that was looked up, e.g. GITHUB_API_TOKEN.
	EnvKey string

	// Target is the path of the target the lookup was made for.
	Target string
}

// Error implements the error interface.
func (e *MissingEnvVariableError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("missing required environment variable %s", e.EnvKey)
	}
	return fmt.Sprintf("missing required environment variable %s for %s", e.EnvKey, e.Target)
}

// AsEngineError classifies the error as a permanent configuration failure.
func (e *MissingEnvVariableError) AsEngineError() *EngineError {
	return NewPermanentError("missing credential", e).
		WithCode(ErrCodeMissingEnvVariable).
		WithResource(e.Target).
		WithDetail("env_key", e.EnvKey)
}

// classifier is implemented by typed errors that map onto the taxonomy.
type classifier interface {
	AsEngineError() *EngineError
}

// Classify returns the EngineError describing err: the first EngineError in
// the chain, or a classification of a known typed error. It returns nil for
// nil and for errors it cannot classify.
func Classify(err error) *EngineError {
	if err == nil {
		return nil
	}

	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}

	var c classifier
	if errors.As(err, &c) {
		return c.AsEngineError()
	}

	var tm *config.TypeMismatchError
	if errors.As(err, &tm) {
		return NewPermanentError("invalid configuration", err).
			WithCode(ErrCodeTypeMismatch).
			WithResource(tm.Option)
	}

	var ve *config.ValidationError
	if errors.As(err, &ve) {
		return NewPermanentError("invalid configuration", err).
			WithCode(ErrCodeValidation).
			WithResource(ve.Path)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewTransientError("interrupted", err).WithCode(ErrCodeCancelled)
	}

	return nil
}

// ErrorCode returns the code of the classified error, or ErrCodeInternal.
func ErrorCode(err error) string {
	if e := Classify(err); e != nil && e.Code != "" {
		return e.Code
	}
	return ErrCodeInternal
}
