package cron_feature

import (
	"context"
	"testing"

	"records-console/internal/common/apperrors"
	"records-console/internal/config"
	"records-console/internal/features/commit"
	"records-console/internal/features/pending"
	"records-console/internal/features/session"
	"records-console/internal/gateway"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MockPendingService applies the same selection as the Mongo query: retryable pending
// records of the given sessions, oldest first, up to limit.
type MockPendingService struct {
	pending.PendingService
	due      []pending.PendingAction
	sessions []string
}

func (m *MockPendingService) Due(ctx context.Context, sessionIDs []string, limit int64) ([]pending.PendingAction, error) {
	m.sessions = sessionIDs
	live := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		live[id] = true
	}
	out := []pending.PendingAction{}
	for _, a := range m.due {
		if int64(len(out)) == limit {
			break
		}
		if a.Status == pending.StatusPending && a.Retryable && live[a.SessionID] {
			out = append(out, a)
		}
	}
	return out, nil
}

type MockSessionService struct {
	session.SessionService
	live map[string]*session.Session
	// stale ids are still listed as active but expire before Get.
	stale  []string
	purged []string
}

func (m *MockSessionService) Get(ctx context.Context, id string) (*session.Session, error) {
	if s, ok := m.live[id]; ok {
		return s, nil
	}
	return nil, apperrors.ErrSessionNotFound
}

func (m *MockSessionService) ActiveIDs(ctx context.Context) []string {
	ids := append([]string(nil), m.stale...)
	for id := range m.live {
		ids = append(ids, id)
	}
	return ids
}

func (m *MockSessionService) PurgeExpired(ctx context.Context) []string {
	return m.purged
}

type MockCoordinator struct {
	commit.Coordinator
	outcomes map[int64]commit.Outcome
	retried  []int64
}

func (m *MockCoordinator) RetryPending(ctx context.Context, sess *session.Session, record *pending.PendingAction) commit.Outcome {
	m.retried = append(m.retried, record.LeadID)
	return m.outcomes[record.LeadID]
}

type MockLookupService struct {
	forgotten []string
}

func (m *MockLookupService) Vocabulary(ctx context.Context, sess *session.Session, name string) ([]gateway.LookupItem, error) {
	return nil, nil
}

func (m *MockLookupService) ActionTakenStage(ctx context.Context, sess *session.Session) (int, error) {
	return 0, nil
}

func (m *MockLookupService) ValidStatus(ctx context.Context, sess *session.Session, kind gateway.ActionKind, statusID int) (bool, error) {
	return false, nil
}

func (m *MockLookupService) Forget(sessionID string) {
	m.forgotten = append(m.forgotten, sessionID)
}

func record(sessionID string, leadID int64) pending.PendingAction {
	return pending.PendingAction{ID: primitive.NewObjectID(), SessionID: sessionID, LeadID: leadID, Kind: gateway.ActionCall, Status: pending.StatusPending, Retryable: true}
}

func newTestService(p *MockPendingService, s *MockSessionService, c *MockCoordinator, l *MockLookupService) *CronServiceImpl {
	cfg := &config.Config{PendingRetrySchedule: "@every 1m"}
	return NewCronService(p, c, s, l, cfg, zap.NewNop()).(*CronServiceImpl)
}

func TestRetryPending(t *testing.T) {
	live := &session.Session{ID: "live"}
	p := &MockPendingService{due: []pending.PendingAction{
		record("live", 1),
		record("gone", 2),
		record("live", 3),
		record("live", 4),
		record("expiring", 5),
	}}
	s := &MockSessionService{live: map[string]*session.Session{"live": live}, stale: []string{"expiring"}}
	c := &MockCoordinator{outcomes: map[int64]commit.Outcome{
		1: {Kind: commit.KindSuccess},
		3: {Kind: commit.KindPartialFailure, Retryable: true},
		4: {Kind: commit.KindPartialFailure, Retryable: false},
	}}

	svc := newTestService(p, s, c, &MockLookupService{})
	report, err := svc.RetryPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := RetryReport{Scanned: 4, Resolved: 1, Failed: 1, Abandoned: 1, Skipped: 1}
	if len(p.sessions) != 2 {
		t.Errorf("expected the active session ids to be passed to Due, got %v", p.sessions)
	}
	if report != want {
		t.Errorf("expected %+v, got %+v", want, report)
	}
	if len(c.retried) != 3 {
		t.Errorf("records of ended sessions must not be retried, got %v", c.retried)
	}
}

func TestRetryPending_EndedSessionsDoNotStarveLiveOnes(t *testing.T) {
	var due []pending.PendingAction
	for i := 0; i < retryBatchSize+10; i++ {
		due = append(due, record("gone", int64(100+i)))
	}
	rejected := record("live", 2)
	rejected.Retryable = false
	due = append(due, rejected, record("live", 1))

	p := &MockPendingService{due: due}
	s := &MockSessionService{live: map[string]*session.Session{"live": {ID: "live"}}}
	c := &MockCoordinator{outcomes: map[int64]commit.Outcome{1: {Kind: commit.KindSuccess}}}

	svc := newTestService(p, s, c, &MockLookupService{})
	for tick := 0; tick < 2; tick++ {
		report, err := svc.RetryPending(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Scanned != 1 || report.Resolved != 1 {
			t.Errorf("tick %d: expected only the live record retried, got %+v", tick, report)
		}
	}
	for _, id := range c.retried {
		if id != 1 {
			t.Errorf("unexpected retry of lead %d", id)
		}
	}
}

func TestRetryPending_NoLiveSessions(t *testing.T) {
	p := &MockPendingService{due: []pending.PendingAction{record("gone", 1)}}
	c := &MockCoordinator{}
	svc := newTestService(p, &MockSessionService{}, c, &MockLookupService{})

	report, err := svc.RetryPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Scanned != 0 || len(c.retried) != 0 {
		t.Errorf("expected nothing scanned, got %+v", report)
	}
}

func TestRunNow(t *testing.T) {
	l := &MockLookupService{}
	s := &MockSessionService{purged: []string{"a", "b"}}
	svc := newTestService(&MockPendingService{}, s, &MockCoordinator{}, l)

	result, err := svc.RunNow(context.Background(), JobPurgeSessions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "purged=2" {
		t.Errorf("unexpected result %q", result)
	}
	if len(l.forgotten) != 2 {
		t.Errorf("expected lookup caches dropped for purged sessions, got %v", l.forgotten)
	}

	if _, err := svc.RunNow(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown job")
	}

	jobs := svc.Jobs()
	if len(jobs) != 2 || jobs[0].Name != JobPurgeSessions || jobs[0].LastRun == nil {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}
