package session

import (
	"context"
	"errors"
	"time"

	"records-console/internal/common/apperrors"
	common_models "records-console/internal/common/models"
	"records-console/internal/config"
	"records-console/internal/features/permission"
	"records-console/internal/gateway"
	"records-console/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SessionService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Session, error)
	// ActiveIDs lists the sessions that have not expired.
	ActiveIDs(ctx context.Context) []string
	// PurgeExpired removes ended sessions and returns their ids.
	PurgeExpired(ctx context.Context) []string
}

// Auditor is the slice of the audit service sessions need.
type Auditor interface {
	LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error
}

type SessionServiceImpl struct {
	Store        SessionStore
	Gateway      gateway.ResourceGateway
	AuditService Auditor
	TTL          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewSessionService(
	store SessionStore,
	gw gateway.ResourceGateway,
	auditService Auditor,
	cfg *config.Config,
	logger *zap.Logger,
) SessionService {
	utils.SetSecret(cfg.JWTSecret)
	return &SessionServiceImpl{
		Store:        store,
		Gateway:      gw,
		AuditService: auditService,
		TTL:          cfg.SessionTTL,
		logger:       logger.Named("session"),
		now:          time.Now,
	}
}

// Login authenticates against the records backend and loads the permission matrix.
// The matrix is not refreshed until the next login.
func (s *SessionServiceImpl) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required")
	}

	cred, user, err := s.Gateway.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	records, err := s.Gateway.FetchPermissions(ctx, cred)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		User:       user,
		Credential: cred,
		Matrix:     permission.NewMatrix(records),
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.TTL),
	}
	if err := s.Store.Save(ctx, sess); err != nil {
		return nil, err
	}

	token, err := utils.GenerateToken(sess.ID, sess.UserID(), user.Username, s.TTL)
	if err != nil {
		_ = s.Store.Delete(ctx, sess.ID)
		return nil, err
	}

	s.logger.Info("session opened",
		zap.String("session_id", sess.ID),
		zap.String("username", user.Username),
		zap.Int("permissions", sess.Matrix.Len()),
	)

	actx := utils.WithClaims(ctx, &utils.UserClaims{SessionID: sess.ID, UserID: sess.UserID(), Username: user.Username})
	_ = s.AuditService.LogChange(actx, common_models.AuditActionLogin, "session", sess.ID, nil)

	return &LoginResult{
		Token:       token,
		Session:     sess,
		Permissions: sess.Matrix.Records(),
	}, nil
}

// Logout discards the session and its matrix.
func (s *SessionServiceImpl) Logout(ctx context.Context, id string) error {
	sess, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session closed", zap.String("session_id", id))
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionLogout, "session", sess.ID, nil)
	return nil
}

func (s *SessionServiceImpl) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		_ = s.Store.Delete(ctx, id)
		return nil, apperrors.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionServiceImpl) ActiveIDs(ctx context.Context) []string {
	sessions, err := s.Store.List(ctx)
	if err != nil {
		s.logger.Warn("listing sessions failed", zap.Error(err))
		return nil
	}
	now := s.now()
	ids := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if !sess.Expired(now) {
			ids = append(ids, sess.ID)
		}
	}
	return ids
}

func (s *SessionServiceImpl) PurgeExpired(ctx context.Context) []string {
	sessions, err := s.Store.List(ctx)
	if err != nil {
		s.logger.Warn("listing sessions failed", zap.Error(err))
		return nil
	}
	var purged []string
	now := s.now()
	for _, sess := range sessions {
		if !sess.Expired(now) {
			continue
		}
		if err := s.Store.Delete(ctx, sess.ID); err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
			s.logger.Warn("purging session failed", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		purged = append(purged, sess.ID)
	}
	if len(purged) > 0 {
		s.logger.Info("expired sessions purged", zap.Int("count", len(purged)))
	}
	return purged
}
