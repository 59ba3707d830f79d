package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"records-console/internal/common/apperrors"
	common_models "records-console/internal/common/models"
	"records-console/internal/config"
	"records-console/internal/features/permission"
	"records-console/internal/gateway"
	"records-console/pkg/utils"

	"go.uber.org/zap"
)

type MockAuditor struct {
	actions []common_models.AuditAction
}

func (m *MockAuditor) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	m.actions = append(m.actions, action)
	return nil
}

func newTestService(t *testing.T) (*SessionServiceImpl, *gateway.MemoryGateway, *MockAuditor) {
	t.Helper()
	gw := gateway.NewMemoryGateway()
	gateway.SeedDemoUsers(gw)
	auditor := &MockAuditor{}
	cfg := &config.Config{JWTSecret: "test-secret", SessionTTL: time.Hour}
	svc := NewSessionService(NewSessionStore(), gw, auditor, cfg, zap.NewNop()).(*SessionServiceImpl)
	return svc, gw, auditor
}

func TestLogin(t *testing.T) {
	svc, gw, auditor := newTestService(t)

	res, err := svc.Login(context.Background(), "agent", "agent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := utils.ValidateToken(res.Token)
	if err != nil {
		t.Fatalf("token must validate: %v", err)
	}
	if claims.SessionID != res.Session.ID || claims.UserID != "2" {
		t.Errorf("unexpected claims %+v", claims)
	}

	eval := res.Session.Evaluator()
	if !eval.Allowed(permission.ModuleRealEstate, permission.FeatureLeads, permission.ActionEdit) {
		t.Error("agent must be able to edit leads")
	}
	if eval.Allowed(permission.ModuleRealEstate, permission.FeatureActions, permission.ActionWrite) {
		t.Error("agent must not be able to write actions")
	}
	if len(res.Permissions) != 2 {
		t.Errorf("expected 2 permission records, got %d", len(res.Permissions))
	}

	calls := gw.Calls()
	if len(calls) != 2 || calls[0] != "authenticate" || calls[1] != "fetchPermissions" {
		t.Errorf("unexpected gateway calls %v", calls)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != common_models.AuditActionLogin {
		t.Errorf("expected login audit, got %v", auditor.actions)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		failOn   string
		check    func(error) bool
	}{
		{"missing password", "agent", "", "", apperrors.IsValidation},
		{"wrong password", "agent", "nope", "", func(err error) bool { return errors.Is(err, apperrors.ErrUnauthenticated) }},
		{"permissions unavailable", "agent", "agent", "fetchPermissions", apperrors.IsRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gw, _ := newTestService(t)
			if tt.failOn != "" {
				gw.FailOn(tt.failOn, &apperrors.GatewayError{Op: tt.failOn, Status: 503, Err: errors.New("down")})
			}

			_, err := svc.Login(context.Background(), tt.username, tt.password)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}

			sessions, _ := svc.Store.List(context.Background())
			if len(sessions) != 0 {
				t.Errorf("failed login must not leave a session, got %d", len(sessions))
			}
		})
	}
}

func TestLogout(t *testing.T) {
	svc, _, auditor := newTestService(t)
	res, err := svc.Login(context.Background(), "manager", "manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Logout(context.Background(), res.Session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), res.Session.ID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("expected session gone, got %v", err)
	}
	if err := svc.Logout(context.Background(), res.Session.ID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("second logout: expected not found, got %v", err)
	}
	if auditor.actions[len(auditor.actions)-1] != common_models.AuditActionLogout {
		t.Errorf("expected logout audit, got %v", auditor.actions)
	}
}

func TestExpiry(t *testing.T) {
	svc, _, _ := newTestService(t)
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	old, err := svc.Login(context.Background(), "manager", "manager")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now = now.Add(45 * time.Minute)
	fresh, err := svc.Login(context.Background(), "agent", "agent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(30 * time.Minute)

	if active := svc.ActiveIDs(context.Background()); len(active) != 1 || active[0] != fresh.Session.ID {
		t.Errorf("expected only the fresh session active, got %v", active)
	}

	purged := svc.PurgeExpired(context.Background())
	if len(purged) != 1 || purged[0] != old.Session.ID {
		t.Errorf("expected only the first session purged, got %v", purged)
	}
	if _, err := svc.Get(context.Background(), fresh.Session.ID); err != nil {
		t.Errorf("fresh session must survive: %v", err)
	}

	now = now.Add(time.Hour)
	if _, err := svc.Get(context.Background(), fresh.Session.ID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("expired session must not be returned, got %v", err)
	}
}
