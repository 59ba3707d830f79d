package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	common_models "records-console/internal/common/models"
	"records-console/internal/config"
	"records-console/internal/features/permission"
	"records-console/internal/features/session"
	"records-console/internal/gateway"
	"records-console/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type noopAuditor struct{}

func (noopAuditor) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func newTestApp(t *testing.T, skipAuth bool) (*fiber.App, session.SessionService) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", SessionTTL: time.Hour, SkipAuth: skipAuth}
	gw := gateway.NewMemoryGateway()
	gateway.SeedDemoUsers(gw)
	sessions := session.NewSessionService(session.NewSessionStore(), gw, noopAuditor{}, cfg, zap.NewNop())

	app := fiber.New()
	app.Use(RequestIDMiddleware())
	auth := NewAuthenticator(sessions, cfg)
	app.Get("/me", auth.Handler(), func(c *fiber.Ctx) error {
		sess, ok := CurrentSession(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		claims, _ := utils.ClaimsFromContext(c.UserContext())
		return c.SendString(sess.User.Username + "|" + claims.UserID + "|" + RequestID(c.UserContext()))
	})
	app.Post("/actions", auth.Handler(),
		RequirePermission(permission.ModuleRealEstate, permission.FeatureActions, permission.ActionWrite),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	return app, sessions
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	app, sessions := newTestApp(t, false)
	res, err := sessions.Login(context.Background(), "agent", "agent")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing token", "", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", "", http.StatusUnauthorized},
		{"invalid token", "Bearer abc", "", http.StatusUnauthorized},
		{"valid bearer", "Bearer " + res.Token, "", http.StatusOK},
		{"query token", "", "?token=" + res.Token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			req.Header.Set("X-Request-ID", "req-1")
			status, body := do(t, app, req)
			if status != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, status, body)
			}
			if tt.want == http.StatusOK && body != "agent|2|req-1" {
				t.Errorf("unexpected body %q", body)
			}
		})
	}
}

func TestAuthMiddleware_LoggedOut(t *testing.T) {
	app, sessions := newTestApp(t, false)
	res, err := sessions.Login(context.Background(), "agent", "agent")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := sessions.Logout(context.Background(), res.Session.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	if status, _ := do(t, app, req); status != http.StatusUnauthorized {
		t.Errorf("token of a closed session must be rejected, got %d", status)
	}
}

func TestAuthMiddleware_SkipAuth(t *testing.T) {
	app, sessions := newTestApp(t, true)
	res, err := sessions.Login(context.Background(), "manager", "manager")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-Session-ID", res.Session.ID)
	status, body := do(t, app, req)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	if body[:len("manager|1|")] != "manager|1|" {
		t.Errorf("claims must be filled from the session, got %q", body)
	}
}

func TestRequirePermission(t *testing.T) {
	app, sessions := newTestApp(t, false)

	tests := []struct {
		user string
		want int
	}{
		{"manager", http.StatusNoContent},
		{"agent", http.StatusForbidden},
	}
	for _, tt := range tests {
		res, err := sessions.Login(context.Background(), tt.user, tt.user)
		if err != nil {
			t.Fatalf("login %s: %v", tt.user, err)
		}
		req := httptest.NewRequest(http.MethodPost, "/actions", nil)
		req.Header.Set("Authorization", "Bearer "+res.Token)
		if status, _ := do(t, app, req); status != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.user, tt.want, status)
		}
	}
}
