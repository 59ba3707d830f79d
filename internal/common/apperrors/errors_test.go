package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized},
		{"permission", PermissionDenied("write on leads"), http.StatusForbidden},
		{"not found", fmt.Errorf("%w: lead 3", ErrNotFound), http.StatusNotFound},
		{"in flight", ErrCommitInFlight, http.StatusConflict},
		{"validation", NewValidationError("bad", FieldError{Field: "date", Message: "is required"}), http.StatusUnprocessableEntity},
		{"timeout", &GatewayError{Op: "writeLead", Timeout: true, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"gateway", &GatewayError{Op: "writeLead", Status: 500, Err: errors.New("boom")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"permission", PermissionDenied("x"), false},
		{"validation", NewValidationError("x"), false},
		{"gateway", &GatewayError{Op: "writeAction", Status: 503, Err: errors.New("down")}, true},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestValidationErrorMessage(t *testing.T) {
	ve := NewValidationError("action is incomplete")
	if ve.HasFields() {
		t.Fatal("expected no fields")
	}
	ve.Add("time", "is required")
	if got := ve.Error(); got != "action is incomplete (time: is required)" {
		t.Errorf("unexpected message %q", got)
	}
}
