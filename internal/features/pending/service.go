package pending

import (
	"context"
	"fmt"

	"records-console/internal/common/apperrors"
	"records-console/internal/config"
	"records-console/internal/gateway"

	"go.uber.org/zap"
)

// PendingService is the ledger of actions whose lead was saved but which were never written.
type PendingService interface {
	Record(ctx context.Context, action *PendingAction) error
	Get(ctx context.Context, id string) (*PendingAction, error)
	ListForUser(ctx context.Context, userID string, status Status) ([]PendingAction, error)
	// Due lists retryable records owned by the given live sessions, oldest first.
	Due(ctx context.Context, sessionIDs []string, limit int64) ([]PendingAction, error)
	// Fail counts a failed attempt and abandons the record once MaxAttempts is reached.
	// A cause that is not retryable takes the record out of scheduled retries.
	Fail(ctx context.Context, id string, cause error) (*PendingAction, error)
	Resolve(ctx context.Context, id string, action gateway.Action) error
}

type PendingServiceImpl struct {
	Repo        PendingRepository
	MaxAttempts int
	logger      *zap.Logger
}

func NewPendingService(repo PendingRepository, cfg *config.Config, logger *zap.Logger) PendingService {
	return &PendingServiceImpl{
		Repo:        repo,
		MaxAttempts: cfg.PendingMaxAttempts,
		logger:      logger.Named("pending"),
	}
}

func (s *PendingServiceImpl) Record(ctx context.Context, action *PendingAction) error {
	action.Status = StatusPending
	if err := s.Repo.Create(ctx, action); err != nil {
		return err
	}
	s.logger.Warn("action recorded as pending",
		zap.String("pending_id", action.ID.Hex()),
		zap.String("session_id", action.SessionID),
		zap.Int64("lead_id", action.LeadID),
		zap.String("action_type", string(action.Kind)),
		zap.String("cause", action.LastError),
	)
	return nil
}

func (s *PendingServiceImpl) Get(ctx context.Context, id string) (*PendingAction, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *PendingServiceImpl) ListForUser(ctx context.Context, userID string, status Status) ([]PendingAction, error) {
	return s.Repo.ListByUser(ctx, userID, status)
}

func (s *PendingServiceImpl) Due(ctx context.Context, sessionIDs []string, limit int64) ([]PendingAction, error) {
	return s.Repo.ListPending(ctx, sessionIDs, limit)
}

func (s *PendingServiceImpl) Fail(ctx context.Context, id string, cause error) (*PendingAction, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	action, err := s.Repo.RecordAttempt(ctx, id, msg, apperrors.IsRetryable(cause))
	if err != nil {
		return nil, err
	}

	if s.MaxAttempts > 0 && action.Attempts >= s.MaxAttempts {
		reason := fmt.Sprintf("gave up after %d attempts: %s", action.Attempts, msg)
		if err := s.Repo.Abandon(ctx, id, reason); err != nil {
			return nil, err
		}
		action.Status = StatusAbandoned
		action.LastError = reason
		s.logger.Error("pending action abandoned",
			zap.String("pending_id", id),
			zap.Int64("lead_id", action.LeadID),
			zap.Int("attempts", action.Attempts),
		)
	}
	return action, nil
}

func (s *PendingServiceImpl) Resolve(ctx context.Context, id string, action gateway.Action) error {
	if err := s.Repo.Resolve(ctx, id, action.ID); err != nil {
		return err
	}
	s.logger.Info("pending action resolved", zap.String("pending_id", id), zap.Int64("action_id", action.ID))
	return nil
}
