package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied is returned when the session matrix or the records backend refuses an action.
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthenticated  = errors.New("invalid username or password")
	ErrSessionNotFound  = errors.New("session not found")
	ErrCommitInFlight   = errors.New("a commit for this lead is already in progress")
	ErrNotFound         = errors.New("not found")
)

// FieldError describes a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is raised before any write is issued, either by the workflow guard
// or by the records backend rejecting a payload (400/409/422).
type ValidationError struct {
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

func NewValidationError(message string, fields ...FieldError) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasFields() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// GatewayError wraps a transport failure talking to the records backend.
type GatewayError struct {
	Op      string
	Status  int
	Timeout bool
	Err     error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("gateway %s: timed out: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// PermissionDenied wraps ErrPermissionDenied with a description of what was refused.
func PermissionDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTimeout reports whether err is a gateway timeout or a deadline expiry.
func IsTimeout(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) && ge.Timeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsRetryable reports whether repeating the same operation may succeed.
// Permission and validation failures never are.
func IsRetryable(err error) bool {
	if err == nil || IsPermissionDenied(err) || IsValidation(err) {
		return false
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
