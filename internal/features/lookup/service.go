package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"records-console/internal/common/apperrors"
	"records-console/internal/config"
	"records-console/internal/features/session"
	"records-console/internal/gateway"

	"go.uber.org/zap"
)

// LookupService loads vocabularies once per session and answers membership questions.
type LookupService interface {
	Vocabulary(ctx context.Context, sess *session.Session, name string) ([]gateway.LookupItem, error)
	ActionTakenStage(ctx context.Context, sess *session.Session) (int, error)
	ValidStatus(ctx context.Context, sess *session.Session, kind gateway.ActionKind, statusID int) (bool, error)
	Forget(sessionID string)
}

type cacheKey struct {
	session    string
	vocabulary string
}

type LookupServiceImpl struct {
	Gateway gateway.ResourceGateway

	stageID   int
	stageName string
	logger    *zap.Logger

	mu    sync.RWMutex
	cache map[cacheKey][]gateway.LookupItem
}

func NewLookupService(gw gateway.ResourceGateway, cfg *config.Config, logger *zap.Logger) LookupService {
	return &LookupServiceImpl{
		Gateway:   gw,
		stageID:   cfg.ActionTakenStageID,
		stageName: cfg.ActionTakenStageName,
		logger:    logger.Named("lookup"),
		cache:     make(map[cacheKey][]gateway.LookupItem),
	}
}

func (s *LookupServiceImpl) Vocabulary(ctx context.Context, sess *session.Session, name string) ([]gateway.LookupItem, error) {
	key := cacheKey{session: sess.ID, vocabulary: name}

	s.mu.RLock()
	items, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return items, nil
	}

	items, err := s.Gateway.FetchLookup(ctx, sess.Credential, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = items
	s.mu.Unlock()

	s.logger.Debug("vocabulary loaded", zap.String("session_id", sess.ID), zap.String("vocabulary", name), zap.Int("items", len(items)))
	return items, nil
}

// ActionTakenStage resolves the stage id whose selection requires a call or meeting.
func (s *LookupServiceImpl) ActionTakenStage(ctx context.Context, sess *session.Session) (int, error) {
	if s.stageID > 0 {
		return s.stageID, nil
	}

	stages, err := s.Vocabulary(ctx, sess, gateway.VocabularyStages)
	if err != nil {
		return 0, err
	}
	for _, st := range stages {
		if strings.EqualFold(strings.TrimSpace(st.Name), s.stageName) {
			return st.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: stage %q", apperrors.ErrNotFound, s.stageName)
}

func (s *LookupServiceImpl) ValidStatus(ctx context.Context, sess *session.Session, kind gateway.ActionKind, statusID int) (bool, error) {
	statuses, err := s.Vocabulary(ctx, sess, kind.StatusVocabulary())
	if err != nil {
		return false, err
	}
	for _, st := range statuses {
		if st.ID == statusID {
			return true, nil
		}
	}
	return false, nil
}

// Forget drops cached vocabularies for a session that has ended.
func (s *LookupServiceImpl) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.cache {
		if k.session == sessionID {
			delete(s.cache, k)
		}
	}
}
