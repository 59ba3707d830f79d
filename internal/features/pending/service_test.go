package pending

import (
	"context"
	"errors"
	"testing"

	"records-console/internal/common/apperrors"
	"records-console/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockPendingRepository struct {
	PendingRepository
	record    PendingAction
	retryable []bool
	abandoned bool
}

func (m *MockPendingRepository) RecordAttempt(ctx context.Context, id string, lastError string, retryable bool) (*PendingAction, error) {
	m.record.Attempts++
	m.record.LastError = lastError
	m.record.Retryable = retryable
	m.retryable = append(m.retryable, retryable)
	cp := m.record
	return &cp, nil
}

func (m *MockPendingRepository) Abandon(ctx context.Context, id string, reason string) error {
	m.abandoned = true
	return nil
}

func TestFail(t *testing.T) {
	tests := []struct {
		name          string
		cause         error
		attempts      int
		wantRetryable bool
		wantAbandoned bool
	}{
		{"transport failure", &apperrors.GatewayError{Op: "writeAction", Status: 503, Err: errors.New("down")}, 0, true, false},
		{"rejected payload", apperrors.NewValidationError("call_status is not valid"), 0, false, false},
		{"permission lost", apperrors.PermissionDenied("writeAction"), 0, false, false},
		{"last attempt", &apperrors.GatewayError{Op: "writeAction", Timeout: true, Err: context.DeadlineExceeded}, 2, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockPendingRepository{record: PendingAction{ID: primitive.NewObjectID(), Attempts: tt.attempts, Status: StatusPending}}
			svc := NewPendingService(repo, &config.Config{PendingMaxAttempts: 3}, zap.NewNop())

			got, err := svc.Fail(context.Background(), repo.record.ID.Hex(), tt.cause)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if repo.retryable[0] != tt.wantRetryable {
				t.Errorf("expected retryable=%v to be stored, got %v", tt.wantRetryable, repo.retryable[0])
			}
			if repo.abandoned != tt.wantAbandoned || (got.Status == StatusAbandoned) != tt.wantAbandoned {
				t.Errorf("expected abandoned=%v, got repo=%v status=%s", tt.wantAbandoned, repo.abandoned, got.Status)
			}
		})
	}
}
